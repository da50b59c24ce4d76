package report

import "github.com/xuri/excelize/v2"

type StyleKey string

const (
	StyleDefault StyleKey = "default"
	StyleHeader  StyleKey = "header"
	StyleID      StyleKey = "id"

	StyleConditionNew     StyleKey = "condition.new"
	StyleConditionGood    StyleKey = "condition.good"
	StyleConditionFair    StyleKey = "condition.fair"
	StyleConditionDamaged StyleKey = "condition.damaged"
	StyleConditionOther   StyleKey = "condition.other"
)

const headerColor = "4F46E5"

// 状態ごとの背景色。完全一致のみ、それ以外は白。
var conditionStyles = map[string]StyleKey{
	"New":     StyleConditionNew,
	"Good":    StyleConditionGood,
	"Fair":    StyleConditionFair,
	"Damaged": StyleConditionDamaged,
}

var conditionFills = map[StyleKey]string{
	StyleConditionNew:     "C6EFCE", // 薄緑
	StyleConditionGood:    "90CAF9", // 薄青
	StyleConditionFair:    "FFF9C4", // 薄黄
	StyleConditionDamaged: "FFCDD2", // 薄赤
	StyleConditionOther:   "FFFFFF",
}

func ConditionStyle(condition string) StyleKey {
	if k, ok := conditionStyles[condition]; ok {
		return k
	}
	return StyleConditionOther
}

// ConditionFill: 状態に対応する背景色（RGB）
func ConditionFill(condition string) string {
	return conditionFills[ConditionStyle(condition)]
}

func solidFill(rgb string) excelize.Fill {
	return excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{rgb}}
}

// excelStyles: StyleKey → excelize のスタイル定義
func excelStyles() map[StyleKey]*excelize.Style {
	styles := map[StyleKey]*excelize.Style{
		StyleHeader: {
			Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
			Fill:      solidFill(headerColor),
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		},
		StyleID: {
			Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
		},
	}
	for key, rgb := range conditionFills {
		styles[key] = &excelize.Style{Fill: solidFill(rgb)}
	}
	return styles
}
