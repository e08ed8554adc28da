// Package grid 在逻辑网格单元与屏幕像素之间做纯函数映射。
package grid

import "fmt"

// Direction 移动方向
type Direction int

const (
	DirNone Direction = iota
	DirUp
	DirDown
	DirLeft
	DirRight
)

func (d Direction) String() string {
	switch d {
	case DirUp:
		return "up"
	case DirDown:
		return "down"
	case DirLeft:
		return "left"
	case DirRight:
		return "right"
	default:
		return "none"
	}
}

// ParseDirection 解析 "up"/"down"/"left"/"right"
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "up":
		return DirUp, nil
	case "down":
		return DirDown, nil
	case "left":
		return DirLeft, nil
	case "right":
		return DirRight, nil
	default:
		return DirNone, fmt.Errorf("unknown direction %q", s)
	}
}

// Offset 返回方向的单位偏移（行向下为正）
func (d Direction) Offset() (dc, dr int) {
	switch d {
	case DirUp:
		return 0, -1
	case DirDown:
		return 0, 1
	case DirLeft:
		return -1, 0
	case DirRight:
		return 1, 0
	default:
		return 0, 0
	}
}

// Cell 网格坐标 (列, 行)
type Cell struct {
	Col int `json:"col"`
	Row int `json:"row"`
}

func (c Cell) String() string { return fmt.Sprintf("(%d,%d)", c.Col, c.Row) }

// Step 沿方向移动 n 格（不做裁剪）
func (c Cell) Step(d Direction, n int) Cell {
	dc, dr := d.Offset()
	return Cell{Col: c.Col + dc*n, Row: c.Row + dr*n}
}

// Add 加上任意偏移（不做裁剪）
func (c Cell) Add(dc, dr int) Cell {
	return Cell{Col: c.Col + dc, Row: c.Row + dr}
}

// Size 显示器像素尺寸
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Point 屏幕像素坐标（浮点，便于亚像素插值）
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

// Lerp 按比例 t 在 p 与 q 之间线性插值
func (p Point) Lerp(q Point, t float64) Point {
	return Point{X: p.X + (q.X-p.X)*t, Y: p.Y + (q.Y-p.Y)*t}
}

// IsZero 判断是否为零位移
func (p Point) IsZero() bool { return p.X == 0 && p.Y == 0 }

// Clamp 将每个轴独立裁剪到 [0, cols-1] × [0, rows-1]
func Clamp(c Cell, cols, rows int) Cell {
	return Cell{Col: clampInt(c.Col, cols), Row: clampInt(c.Row, rows)}
}

func clampInt(v, n int) int {
	if v < 0 || n <= 0 {
		return 0
	}
	if v > n-1 {
		return n - 1
	}
	return v
}

// CellToScreen 返回单元格中心的像素坐标：显示器被均分为 cols × rows 个区域
func CellToScreen(c Cell, cols, rows int, monitor Size) Point {
	cw := monitor.Width / float64(cols)
	ch := monitor.Height / float64(rows)
	return Point{
		X: (float64(c.Col) + 0.5) * cw,
		Y: (float64(c.Row) + 0.5) * ch,
	}
}

// Center 网格中心单元
func Center(cols, rows int) Cell {
	return Cell{Col: cols / 2, Row: rows / 2}
}
