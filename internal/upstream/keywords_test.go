package upstream

import "testing"

func TestCategory(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"大の里が横綱昇進", "スポーツ"},
		{"首相が会見", "政治"},
		{"中国が日本産水産物の輸入再開", "国際"},
		{"生成AIの新サービス", "テクノロジー"},
		{"台風10号が上陸", "社会"},
		{"新型ワクチンの接種開始", "医療"},
		{"広島で平和記念式典", "科学・環境"},
		{"人気ドラマの続編決定", "エンタメ"},
		{"新幹線が運転見合わせ", "交通"},
		{"大学入試の日程発表", "教育"},
		{"日銀が利上げを決定", "経済"},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			if got := Category(tt.title); got != tt.want {
				t.Errorf("Category(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

func TestStockImage(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"株価が上昇", unsplash("1611974789855-9c2a0a7236a3")},
		{"マンション価格が高騰", unsplash("1560518883-ce09059eeffa")},
		{"JALが新路線", unsplash("1436491865332-7a61a109cc05")},
		{"特に該当なし", defaultStockImage},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			if got := StockImage(tt.title); got != tt.want {
				t.Errorf("StockImage(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}
