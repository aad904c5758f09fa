package scanner

import (
	"fmt"
	"testing"

	"github.com/atikulmunna/sleuth/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const queryLine = "#250101 10:00:00 server id 1  end_log_pos 100 CRC32 0x1a2b \tQuery\tthread_id=42\texec_time=0\terror_code=0"

func TestBinlogCoalescesConsecutiveTarget(t *testing.T) {
	res := scan(t, model.LogTransactional, Options{},
		queryLine,
		"### DELETE FROM `shop`.`orders`",
		"### WHERE",
		"###   @1=1",
		"### DELETE FROM `shop`.`orders`",
		"### WHERE",
		"###   @1=2",
		"### DELETE FROM `shop`.`orders`",
		"### INSERT INTO `shop`.`orders_audit`",
	)

	require.Len(t, res.Operations, 2)

	del := res.Operations[0]
	assert.Equal(t, model.OpDelete, del.Kind)
	assert.Equal(t, "shop.orders", del.Target)
	assert.Equal(t, 3, del.Events)
	assert.Equal(t, 3, del.Rows)
	assert.Equal(t, 2, del.LineNumber)
	assert.Equal(t, "250101 10:00:00", del.Timestamp)
	assert.Equal(t, []model.Entity{
		{Type: model.EntityThreadID, Value: "42", LineNumber: 2},
		{Type: model.EntityServerID, Value: "1", LineNumber: 2},
	}, del.RelatedEntities)

	ins := res.Operations[1]
	assert.Equal(t, model.OpInsert, ins.Kind)
	assert.Equal(t, "shop.orders_audit", ins.Target)
	assert.Equal(t, 1, ins.Events)
}

func TestBinlogFlushCompleteness(t *testing.T) {
	res := scan(t, model.LogTransactional, Options{},
		queryLine,
		"### UPDATE `app`.`a`",
		"### UPDATE `app`.`a`",
		"### DELETE FROM `app`.`b`",
		"# at 512",
		"### UPDATE `app`.`a`",
	)

	var targets []string
	for _, op := range res.Operations {
		targets = append(targets, op.Target)
	}
	// Three maximal runs: a, b, a. The last is flushed at end of stream.
	assert.Equal(t, []string{"app.a", "app.b", "app.a"}, targets)
	assert.Equal(t, []int{2, 1, 1}, []int{res.Operations[0].Events, res.Operations[1].Events, res.Operations[2].Events})
}

func TestBinlogCoalescingKeyIsTargetOnly(t *testing.T) {
	res := scan(t, model.LogTransactional, Options{},
		"### DELETE FROM `app`.`a`",
		"### INSERT INTO `app`.`a`",
	)

	require.Len(t, res.Operations, 1)
	assert.Equal(t, model.OpDelete, res.Operations[0].Kind)
	assert.Equal(t, 2, res.Operations[0].Events)
}

func TestBinlogTableMapResolvesRowEvents(t *testing.T) {
	res := scan(t, model.LogTransactional, Options{},
		"#250101 10:00:00 server id 7  end_log_pos 200 CRC32 0x2 \tTable_map: `shop`.`orders` mapped to number 108",
		"#250101 10:00:01 server id 7  end_log_pos 300 CRC32 0x3 \tDelete_rows: table id 108 flags: STMT_END_F",
		"### DELETE FROM `shop`.`orders`",
		"#250101 10:00:02 server id 7  end_log_pos 400 CRC32 0x4 \tWrite_rows: table id 999 flags: STMT_END_F",
	)

	require.Len(t, res.Operations, 1)
	assert.Equal(t, model.OpDelete, res.Operations[0].Kind)
	assert.Equal(t, "shop.orders", res.Operations[0].Target)
	// The Delete_rows header is a marker line but not a row.
	assert.Equal(t, 2, res.Operations[0].Events)
	assert.Equal(t, 1, res.Operations[0].Rows)
	assert.Equal(t, "250101 10:00:01", res.Operations[0].Timestamp)

	assert.Equal(t, 1, res.State.DroppedRowEvents)
	assert.Equal(t, TableRef{Database: "shop", Table: "orders"}, res.State.TableMap["108"])
	assert.Equal(t, "250101 10:00:00", res.State.TimeRange.Start)
	assert.Equal(t, "250101 10:00:02", res.State.TimeRange.End)
}

func TestBinlogSingleStatementCountsEveryRow(t *testing.T) {
	lines := []string{
		"#250101 10:00:00 server id 7  end_log_pos 200 CRC32 0x2 \tTable_map: `shop`.`orders` mapped to number 108",
		"#250101 10:00:01 server id 7  end_log_pos 300 CRC32 0x3 \tDelete_rows: table id 108 flags: STMT_END_F",
	}
	for i := 0; i < 500; i++ {
		lines = append(lines, "### DELETE FROM `shop`.`orders`", "### WHERE", fmt.Sprintf("###   @1=%d", i))
	}
	res := scan(t, model.LogTransactional, Options{}, lines...)

	require.Len(t, res.Operations, 1)
	assert.Equal(t, 501, res.Operations[0].Events)
	assert.Equal(t, 500, res.Operations[0].Rows)
}

func TestBinlogRowEventBeforeTableMapIsDropped(t *testing.T) {
	res := scan(t, model.LogTransactional, Options{},
		"#250101 10:00:01 server id 7  end_log_pos 300 CRC32 0x3 \tUpdate_rows: table id 5 flags: STMT_END_F",
		"#250101 10:00:02 server id 7  end_log_pos 350 CRC32 0x3 \tTable_map: `shop`.`users` mapped to number 5",
	)

	assert.Empty(t, res.Operations)
	assert.Equal(t, 1, res.State.DroppedRowEvents)
}

func TestBinlogSessionContextIsCumulative(t *testing.T) {
	res := scan(t, model.LogTransactional, Options{},
		queryLine,
		"### DELETE FROM `app`.`a`",
		"#250101 10:05:00 server id 1  end_log_pos 900 CRC32 0x9 \tQuery\tthread_id=43\texec_time=0",
		"### DELETE FROM `app`.`b`",
	)

	require.Len(t, res.Operations, 2)
	assert.Equal(t, "42", res.Operations[0].RelatedEntities[0].Value)
	assert.Equal(t, "43", res.Operations[1].RelatedEntities[0].Value)
	assert.Equal(t, "250101 10:05:00", res.Operations[1].Timestamp)
	assert.Equal(t, "43", res.State.CurrentThreadID)
	assert.Equal(t, "1", res.State.CurrentServerID)
}

func TestBinlogEntitiesNotDoubleCounted(t *testing.T) {
	res := scan(t, model.LogTransactional, Options{},
		queryLine,
		"#250101 10:00:00 server id 1  end_log_pos 200 CRC32 0x2 \tTable_map: `shop`.`orders` mapped to number 108",
		"SET @@SESSION.GTID_NEXT= 'aaaa-bbbb:12'/*!*/;",
	)

	assert.Equal(t, []string{"42"}, entityValues(res, model.EntityThreadID))
	assert.Equal(t, []string{"1", "1"}, entityValues(res, model.EntityServerID))
	assert.Equal(t, []string{"shop.orders"}, entityValues(res, model.EntityDatabase))
	assert.Equal(t, []string{"aaaa-bbbb:12"}, entityValues(res, model.EntityGTID))
}
