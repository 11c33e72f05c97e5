package entity

import "time"

// State はARセッションの配置状態です。
type State string

const (
	StateIdle           State = "idle"
	StateCapturing      State = "capturing"
	StateAwaitingResult State = "awaiting_result"
	StatePlaced         State = "placed"
	StateFailed         State = "failed"
)

// IsBusy はAI配置の処理中かどうかを返します。
func (s State) IsBusy() bool {
	return s == StateCapturing || s == StateAwaitingResult
}

// Control は手動コントロールの軸です。
type Control string

const (
	ControlVertical Control = "vertical"
	ControlYaw      Control = "yaw"
	ControlScale    Control = "scale"
)

// Session は1人のユーザーが1つの商品をARで表示している間の状態です。
type Session struct {
	ID                      string
	OwnerID                 string
	ProductID               string
	ObjectType              string
	Dimensions              Dimensions
	Color                   string
	State                   State
	Pose                    Pose
	Visible                 bool
	// CaptureDisabled はカメラが使えないと分かった後にAI配置を無効化します。
	CaptureDisabled         bool
	// AutoPlaceDisabledReason が空でなければ、商品側の理由でAI配置を提供しません（手動配置のみ）。
	AutoPlaceDisabledReason string
	Reasoning               string
	Confidence              *float64
	LastError               string
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// ApplyResult は成功した配置結果をセッションに反映します。
func (s *Session) ApplyResult(r PlacementResult, now time.Time) {
	s.Pose.Apply(r)
	s.Visible = true
	s.Reasoning = r.Reasoning
	c := r.Confidence
	s.Confidence = &c
	s.State = StatePlaced
	s.LastError = ""
	s.UpdatedAt = now
}

// Fail は配置失敗を記録します。姿勢は変更しません。
func (s *Session) Fail(msg string, now time.Time) {
	s.State = StateFailed
	s.LastError = msg
	s.UpdatedAt = now
}

// Clone はセッションのコピーを返します。呼び出し側がストア内の値を書き換えないようにします。
func (s *Session) Clone() Session {
	out := *s
	if s.Confidence != nil {
		c := *s.Confidence
		out.Confidence = &c
	}
	return out
}
