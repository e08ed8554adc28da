// Package motion 光标运动状态机：Idle / Tweening 两种状态，仅由 Tick 线程推进。
package motion

// Ease 三次缓出 1-(1-t)^3；t 被限制在 [0,1]，两端精确返回 0 与 1
func Ease(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	u := 1 - t
	return 1 - u*u*u
}
