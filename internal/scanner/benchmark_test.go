package scanner

import (
	"fmt"
	"testing"

	"github.com/atikulmunna/sleuth/internal/extract"
	"github.com/atikulmunna/sleuth/internal/model"
)

// BenchmarkBinlog measures a 1000-line transactional scan.
func BenchmarkBinlog(b *testing.B) {
	lines := make([]string, 0, 1000)
	for i := 0; len(lines) < 1000; i++ {
		lines = append(lines,
			fmt.Sprintf("#250101 10:%02d:00 server id 1  end_log_pos %d CRC32 0x1 \tQuery\tthread_id=%d", i%60, i*100, i%7),
			fmt.Sprintf("### DELETE FROM `shop`.`t%d`", i%3),
			"### WHERE",
			fmt.Sprintf("###   @1=%d", i),
		)
	}
	benchScan(b, model.LogTransactional, lines)
}

// BenchmarkAppLog measures a 1000-line application log scan with stack traces.
func BenchmarkAppLog(b *testing.B) {
	lines := make([]string, 0, 1000)
	for i := 0; len(lines) < 1000; i++ {
		lines = append(lines,
			fmt.Sprintf("2025-01-01 10:00:%02d INFO com.acme.Api - request_id=req%06d ok", i%60, i),
			fmt.Sprintf("2025-01-01 10:00:%02d ERROR com.acme.Api - failed for 10.0.0.%d", i%60, i%255),
			"java.lang.IllegalStateException: bad state",
			"    at com.acme.Api.handle(Api.java:42)",
		)
	}
	benchScan(b, model.LogStructuredApp, lines)
}

// BenchmarkGeneric measures a 1000-line access log scan.
func BenchmarkGeneric(b *testing.B) {
	lines := make([]string, 1000)
	for i := range lines {
		lines[i] = fmt.Sprintf(`10.0.%d.1 - - [17/Feb/2026:12:00:00 +0000] "POST /login HTTP/1.1" %d 512`, i%255, 200+i%4*100)
	}
	benchScan(b, model.LogAccess, lines)
}

func benchScan(b *testing.B, typ model.LogType, lines []string) {
	ex := extract.New()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		sc := New(typ, ex, Options{})
		for n, l := range lines {
			sc.FeedLine(n+1, l)
		}
		sc.Finalize()
	}
}
