package entity

// Pose は配置された3Dプロキシの姿勢です。
// Rotation はオイラー角（ラジアン）ですが、0以外になるのはYだけです。
type Pose struct {
	Position Vector3
	Rotation Vector3
	Scale    float64
}

// InitialPose はAR表示開始時の姿勢です。カメラ正面の奥行き z に等倍で置きます。
func InitialPose(z float64) Pose {
	return Pose{Position: Vector3{Z: z}, Scale: 1}
}

// Apply は配置結果を剛体変換として上書き適用します。同じ結果を何度適用しても同じ姿勢になります。
func (p *Pose) Apply(r PlacementResult) {
	p.Position = r.Position
	p.Rotation = Vector3{Y: r.Rotation}
	p.Scale = r.Scale
}

// SetVertical は高さ（position.y）だけを変更します。
func (p *Pose) SetVertical(y float64) {
	p.Position.Y = y
}

// SetYaw はY軸回転（ラジアン）だけを変更します。
func (p *Pose) SetYaw(rad float64) {
	p.Rotation.Y = rad
}

// SetScale は均一スケールだけを変更します。
func (p *Pose) SetScale(s float64) {
	p.Scale = s
}
