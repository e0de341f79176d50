package upstream

import "strings"

// keywordRule はタイトルにいずれかのキーワードを含む記事に割り当てる値。
type keywordRule struct {
	value    string
	keywords []string
}

// match はrulesを先頭から照合し、最初に一致したルールの値を返す。
func match(rules []keywordRule, title, fallback string) string {
	lower := strings.ToLower(title)
	for _, rule := range rules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.value
			}
		}
	}
	return fallback
}

// defaultCategory はどのカテゴリにも当てはまらない記事のカテゴリ。
const defaultCategory = "経済"

var categoryRules = []keywordRule{
	{"スポーツ", []string{"野球", "サッカー", "テニス", "ゴルフ", "相撲", "スポーツ", "横綱", "選手", "試合", "勝利", "敗北", "プロ野球", "jリーグ", "オリンピック", "大会", "競技"}},
	{"政治", []string{"政治", "政府", "首相", "大臣", "国会", "選挙", "政策", "法案", "議員", "党", "内閣", "官房"}},
	{"国際", []string{"中国", "韓国", "アメリカ", "ロシア", "北朝鮮", "台湾", "外交", "国際", "大使", "首脳", "会談", "条約", "貿易摩擦"}},
	{"テクノロジー", []string{"ai", "人工知能", "it", "テクノロジー", "デジタル", "ソフトウェア", "アプリ", "システム", "ネット", "インターネット", "スマホ", "コンピュータ"}},
	{"社会", []string{"社会", "事件", "事故", "災害", "地震", "台風", "火災", "犯罪", "逮捕", "裁判", "判決", "宗教", "僧侶", "寺院"}},
	{"医療", []string{"医療", "病院", "薬", "治療", "患者", "医師", "看護", "健康", "ワクチン", "感染", "コロナ", "新型", "インフルエンザ"}},
	{"科学・環境", []string{"環境", "気候", "温暖化", "科学", "研究", "実験", "発見", "宇宙", "原発", "核", "平和", "原爆"}},
	{"エンタメ", []string{"芸能", "映画", "音楽", "テレビ", "ドラマ", "アニメ", "俳優", "歌手", "タレント", "アイドル", "コンサート"}},
	{"交通", []string{"交通", "電車", "新幹線", "航空", "空港", "道路", "自動車", "バス", "運輸", "鉄道"}},
	{"教育", []string{"教育", "学校", "大学", "学生", "入試", "受験", "授業", "教師", "先生", "学習"}},
}

// Category はタイトルのキーワードから記事のカテゴリを決める。
func Category(title string) string {
	return match(categoryRules, title, defaultCategory)
}

// defaultStockImage はどのキーワードにも当てはまらない記事の画像。
const defaultStockImage = "https://images.unsplash.com/photo-1504711434969-e33886168f5c?w=400&h=300&fit=crop"

func unsplash(id string) string {
	return "https://images.unsplash.com/photo-" + id + "?w=400&h=300&fit=crop"
}

var stockImageRules = []keywordRule{
	{unsplash("1578662996442-48f60103fc96"), []string{"中国", "日本産", "輸入", "許可", "水産物", "マグロ", "ホタテ", "貿易", "国際"}},
	{unsplash("1506905925346-21bda4d32df4"), []string{"広島", "核実験", "カザフスタン", "知事", "平和", "核", "原爆"}},
	{unsplash("1563789031959-4c02bcb41319"), []string{"タイ", "僧侶", "性的", "金銭", "脅し", "宗教", "社会", "寺院"}},
	{unsplash("1544947950-fa07a98d237f"), []string{"相撲", "横綱", "大の里", "名古屋場所", "格闘技", "力士"}},
	{unsplash("1551698618-1dfe5d97d256"), []string{"クマ", "目撃", "ゴルフ", "無観客", "野生動物", "宮城", "富谷", "動物"}},
	{unsplash("1611974789855-9c2a0a7236a3"), []string{"株価", "株式", "投資", "市場", "日経", "ダウ", "証券", "nikkei", "金融"}},
	{unsplash("1560518883-ce09059eeffa"), []string{"マンション", "不動産", "住宅", "建設", "土地", "建物"}},
	{unsplash("1556742049-0cfed4f6a45d"), []string{"セブン", "コンビニ", "小売", "売上", "消費", "店舗", "販売"}},
	{unsplash("1549924231-f129b911e442"), []string{"自動車", "車", "トヨタ", "ホンダ", "日産", "ev", "電気自動車", "交通"}},
	{unsplash("1518709268805-4e9042af2176"), []string{"ai", "人工知能", "it", "テクノロジー", "デジタル", "ソフトウェア", "アプリ", "システム"}},
	{unsplash("1554224155-6726b3ff858f"), []string{"銀行", "融資", "金利", "円安", "円高", "為替", "通貨"}},
	{unsplash("1473341304170-971dccb5ac1e"), []string{"エネルギー", "電力", "石油", "ガス", "原油", "再生可能", "発電"}},
	{unsplash("1581091226825-a6a2a5aee158"), []string{"製造", "工場", "生産", "輸出", "輸入", "産業", "機械"}},
	{unsplash("1436491865332-7a61a109cc05"), []string{"航空", "旅行", "観光", "ana", "jal", "ホテル", "空港"}},
	{unsplash("1542838132-92c53300491e"), []string{"食品", "農業", "農産物", "食料", "レストラン", "飲食", "料理"}},
	{unsplash("1559757148-5c350d0d3c56"), []string{"医療", "製薬", "病院", "薬", "ワクチン", "治療", "健康"}},
	{unsplash("1529107386315-e1a2ed48a620"), []string{"政府", "政策", "税", "規制", "法律", "国会", "政治"}},
	{unsplash("1523050854058-8df90110c9f1"), []string{"教育", "学校", "大学", "学生", "授業", "研究"}},
	{unsplash("1441974231531-c6227db76b6e"), []string{"環境", "気候", "温暖化", "co2", "排出", "自然"}},
	{unsplash("1486406146926-c627a92ad1ab"), []string{"企業", "会社", "ビジネス", "業績", "決算", "売上", "経営"}},
	{unsplash("1461896836934-ffe607ba8211"), []string{"スポーツ", "試合", "選手", "競技", "オリンピック"}},
	{unsplash("1489824904134-891ab64532f1"), []string{"映画", "音楽", "芸能", "文化", "アート", "展示"}},
}

// StockImage はタイトルのキーワードから記事の画像を選ぶ。
// フィードに画像が含まれない記事に使う。
func StockImage(title string) string {
	return match(stockImageRules, title, defaultStockImage)
}

// defaultTopic はどのトピックにも当てはまらない記事のトピック。
const defaultTopic = "経済動向"

var topicRules = []keywordRule{
	{"小売業界", []string{"セブン", "コンビニ", "小売"}},
	{"不動産市場", []string{"マンション", "不動産"}},
	{"株式市場", []string{"株価", "投資"}},
	{"企業業績", []string{"企業", "業績"}},
	{"国際貿易", []string{"中国", "輸入", "水産物", "貿易"}},
	{"平和・核問題", []string{"広島", "核", "平和"}},
	{"スポーツ", []string{"相撲", "スポーツ", "横綱"}},
	{"社会問題", []string{"宗教", "僧侶", "社会"}},
}

// topic は全体概要で挙げる記事のトピックを決める。
func topic(title string) string {
	return match(topicRules, title, defaultTopic)
}
