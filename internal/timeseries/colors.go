package timeseries

const (
	ColorGreen  = "#54B399"
	ColorBlue   = "#6092C0"
	ColorYellow = "#D6BF57"
	ColorOrange = "#DA8B45"
	ColorRed    = "#E7664C"
)

// 常见 HTTP 状态分类的固定颜色
var assignedColors = map[string]string{
	"HTTP 2xx": ColorGreen,
	"HTTP 3xx": ColorYellow,
	"HTTP 4xx": ColorOrange,
	"HTTP 5xx": ColorRed,
}

// 其他分类按首次出现顺序使用的备用调色板
var fallbackPalette = []string{
	"#6092C0",
	"#9170B8",
	"#CA8EAE",
	"#B9A888",
	"#D36086",
	"#AA6556",
}

// ColorsByKey 为分类 key 分配颜色
// 固定分类使用预设颜色，其余按出现顺序取备用调色板，用尽后循环复用
func ColorsByKey(keys []string) map[string]string {
	colors := make(map[string]string, len(keys))
	next := 0
	for _, key := range keys {
		if _, ok := colors[key]; ok {
			continue
		}
		if c, ok := assignedColors[key]; ok {
			colors[key] = c
			continue
		}
		colors[key] = fallbackPalette[next%len(fallbackPalette)]
		next++
	}
	return colors
}
