package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"

	"smartchair/internal/models"
)

// Header 导出列顺序
var Header = []string{"timestamp", "posture", "distance", "sitting_time"}

// flushEvery 每写入多少行刷新一次
const flushEvery = 256

var postureReplacer = strings.NewReplacer(",", " ", "\r", " ", "\n", " ")

// Rows 惰性生成导出行：先表头，再按插入顺序每条记录一行
// entries 应为请求开始时的快照；之后的追加不可见
func Rows(entries []models.TelemetryEntry) iter.Seq[[]string] {
	return func(yield func([]string) bool) {
		if !yield(Header) {
			return
		}
		for _, e := range entries {
			if !yield(Record(e)) {
				return
			}
		}
	}
}

// Record 一条记录对应的字段
func Record(e models.TelemetryEntry) []string {
	ts := ""
	if e.Timestamp != nil {
		ts = e.Timestamp.String()
	}
	return []string{
		ts,
		SanitizePosture(e.Posture),
		formatNumber(e.Distance),
		formatNumber(e.SittingTime),
	}
}

// SanitizePosture 去掉会破坏行结构的分隔符（逗号、换行）
func SanitizePosture(p string) string {
	return strings.TrimSpace(postureReplacer.Replace(p))
}

// WriteCSV 流式写出，返回写入的数据行数（不含表头）
func WriteCSV(w io.Writer, rows iter.Seq[[]string]) (int, error) {
	cw := csv.NewWriter(w)
	n := -1
	for row := range rows {
		if err := cw.Write(row); err != nil {
			return max(n, 0), fmt.Errorf("failed to write csv row: %w", err)
		}
		n++
		if n%flushEvery == 0 {
			cw.Flush()
			if err := cw.Error(); err != nil {
				return max(n, 0), fmt.Errorf("failed to flush csv: %w", err)
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return max(n, 0), fmt.Errorf("failed to flush csv: %w", err)
	}
	return max(n, 0), nil
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
