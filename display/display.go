// Package display 解析目标显示器的像素尺寸。
package display

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"

	"gridpointer/grid"
)

// DefaultRoot DRM 连接器所在目录
const DefaultRoot = "/sys/class/drm"

// Auto 选择第一个已连接的输出
const Auto = "auto"

// Output 一个 DRM 连接器
type Output struct {
	Name      string    `json:"name"` // 例如 HDMI-A-1
	Connected bool      `json:"connected"`
	Modes     []string  `json:"modes,omitempty"`
	Size      grid.Size `json:"size"`
}

// Resolution 解析结果；Source 为连接器名或 "config"
type Resolution struct {
	Size   grid.Size `json:"size"`
	Source string    `json:"source"`
	Reason string    `json:"reason,omitempty"`
}

// Outputs 列出所有连接器（按名称排序）
func Outputs(fsys fs.FS) ([]Output, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	var out []Output
	for _, e := range entries {
		name := e.Name()
		card, conn, ok := strings.Cut(name, "-")
		if !ok || !strings.HasPrefix(card, "card") {
			continue
		}
		status, err := fs.ReadFile(fsys, path.Join(name, "status"))
		if err != nil {
			continue
		}
		o := Output{Name: conn, Connected: strings.TrimSpace(string(status)) == "connected"}
		if modes, err := fs.ReadFile(fsys, path.Join(name, "modes")); err == nil {
			sc := bufio.NewScanner(strings.NewReader(string(modes)))
			for sc.Scan() {
				if m := strings.TrimSpace(sc.Text()); m != "" {
					o.Modes = append(o.Modes, m)
				}
			}
		}
		if len(o.Modes) > 0 {
			o.Size, _ = ParseMode(o.Modes[0])
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ParseMode 解析 "1920x1080"（允许 "1920x1080i" 之类的后缀）
func ParseMode(mode string) (grid.Size, error) {
	w, h, ok := strings.Cut(strings.TrimSpace(mode), "x")
	if !ok {
		return grid.Size{}, fmt.Errorf("invalid mode %q", mode)
	}
	h = strings.TrimRightFunc(h, func(r rune) bool { return r < '0' || r > '9' })
	wi, err := strconv.Atoi(w)
	if err != nil || wi <= 0 {
		return grid.Size{}, fmt.Errorf("invalid mode width %q", mode)
	}
	hi, err := strconv.Atoi(h)
	if err != nil || hi <= 0 {
		return grid.Size{}, fmt.Errorf("invalid mode height %q", mode)
	}
	return grid.Size{Width: float64(wi), Height: float64(hi)}, nil
}

// Resolve 选择目标输出的首选模式；找不到时返回 fallback，并在 Reason 中说明原因
func Resolve(fsys fs.FS, target string, fallback grid.Size) Resolution {
	fb := func(reason string) Resolution {
		return Resolution{Size: fallback, Source: "config", Reason: reason}
	}
	if fsys == nil {
		return fb("no drm root")
	}
	outputs, err := Outputs(fsys)
	if err != nil {
		return fb(err.Error())
	}
	target = strings.TrimSpace(target)
	if target == "" {
		target = Auto
	}
	for _, o := range outputs {
		if !strings.EqualFold(target, Auto) && !strings.EqualFold(target, o.Name) {
			continue
		}
		if !o.Connected {
			if !strings.EqualFold(target, Auto) {
				return fb(fmt.Sprintf("output %s not connected", o.Name))
			}
			continue
		}
		if o.Size.Width <= 0 || o.Size.Height <= 0 {
			return fb(fmt.Sprintf("output %s reports no modes", o.Name))
		}
		return Resolution{Size: o.Size, Source: o.Name}
	}
	return fb(fmt.Sprintf("no connected output matches %q", target))
}

// ResolveSystem 使用 /sys/class/drm
func ResolveSystem(target string, fallback grid.Size) Resolution {
	return Resolve(os.DirFS(DefaultRoot), target, fallback)
}
