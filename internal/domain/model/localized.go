package model

// 多言語テキスト {"zh-CN": "...", "en-US": "..."}
type LocalizedText map[string]string

const (
	LangZhCN = "zh-CN"
	LangEnUS = "en-US"
)

// 同じ文言を全言語に入れる（登録時など）
func NewLocalizedText(text string) LocalizedText {
	return LocalizedText{LangZhCN: text, LangEnUS: text}
}

// langが無ければen-US、それも無ければ最初の値
func (t LocalizedText) Get(lang string) string {
	if v, ok := t[lang]; ok {
		return v
	}
	if v, ok := t[LangEnUS]; ok {
		return v
	}
	for _, v := range t {
		return v
	}
	return ""
}

// コピー（スナップショット用）
func (t LocalizedText) Clone() LocalizedText {
	if t == nil {
		return nil
	}
	out := make(LocalizedText, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// 仕様などの自由形式属性
type Attributes map[string]any

func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}
