package usecase

import "time"

// SetClock はテスト用に現在時刻を差し替えます。
func (s *SessionService) SetClock(now func() time.Time) {
	s.now = now
}
