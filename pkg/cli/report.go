package cli

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/nimburion/esbench/pkg/workload"
)

// writeReport prints result in the YCSB text measurement format, e.g.
//
//	[OVERALL], RunTime(ms), 1532
//	[READ], AverageLatency(us), 412.5
//	[READ], Return=OK, 950
func writeReport(w io.Writer, result *workload.Result) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "[OVERALL], RunTime(ms), %d\n", result.Duration.Milliseconds())
	fmt.Fprintf(bw, "[OVERALL], Throughput(ops/sec), %.3f\n", result.Throughput)

	for _, s := range result.Summary {
		fmt.Fprintf(bw, "[%s], Operations, %d\n", s.Operation, s.Count)
		fmt.Fprintf(bw, "[%s], AverageLatency(us), %.3f\n", s.Operation, micros(s.AvgLatency))
		fmt.Fprintf(bw, "[%s], 95thPercentileLatency(us), %.0f\n", s.Operation, micros(s.P95Latency))
		fmt.Fprintf(bw, "[%s], 99thPercentileLatency(us), %.0f\n", s.Operation, micros(s.P99Latency))
		fmt.Fprintf(bw, "[%s], MaxLatency(us), %.0f\n", s.Operation, micros(s.MaxLatency))

		statuses := make([]string, 0, len(s.ByStatus))
		for status := range s.ByStatus {
			statuses = append(statuses, status)
		}
		sort.Strings(statuses)
		for _, status := range statuses {
			fmt.Fprintf(bw, "[%s], Return=%s, %d\n", s.Operation, status, s.ByStatus[status])
		}
	}
	return bw.Flush()
}

func micros(d time.Duration) float64 {
	return float64(d) / float64(time.Microsecond)
}
