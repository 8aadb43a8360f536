package store

import "smartchair/internal/models"

// Latest 最近一次追加的记录
// 只在 History 的写临界区内被修改，读操作由 History 的读锁保护
type Latest struct {
	entry models.TelemetryEntry
	set   bool
}

// Get 返回当前记录；尚无数据时返回哨兵值
func (l *Latest) Get() models.TelemetryEntry {
	if !l.set {
		return models.EmptyEntry()
	}
	return l.entry
}

func (l *Latest) put(e models.TelemetryEntry) {
	l.entry = e
	l.set = true
}
