package profile

// LabelTriggers maps a label to the ordered trigger substrings that vote
// for it. The trigger tables below are fixed at startup and never mutated.
type LabelTriggers struct {
	Label    string
	Triggers []string
}

// Region is a known prefecture. Name is the short form looked for in page
// text; Canonical is the full prefecture name used on subsidy records.
type Region struct {
	Name      string
	Canonical string
}

// Lexicon holds the detection tables for the heuristic extractor. Treat a
// Lexicon as immutable after construction; one instance is shared by all
// concurrent extractions.
type Lexicon struct {
	BusinessTypes []LabelTriggers
	Categories    []LabelTriggers
	Prefectures   []Region
}

// DefaultLexicon returns the built-in detection tables.
func DefaultLexicon() *Lexicon {
	return &Lexicon{
		BusinessTypes: []LabelTriggers{
			{"IT・ソフトウェア", []string{"it", "ソフトウェア", "アプリ", "システム", "web", "デジタル", "dx", "ai", "プログラミング", "開発"}},
			{"製造業", []string{"製造", "工場", "生産", "もの作り", "ものづくり", "加工", "機械"}},
			{"農業", []string{"農業", "農家", "農産物", "野菜", "果物", "米", "畜産", "農地"}},
			{"飲食", []string{"飲食", "レストラン", "カフェ", "居酒屋", "食堂", "料理"}},
			{"小売", []string{"小売", "販売", "ショップ", "店舗", "ec", "オンラインショップ"}},
			{"医療・福祉", []string{"医療", "病院", "クリニック", "介護", "福祉", "ケア"}},
			{"教育", []string{"教育", "学校", "塾", "スクール", "研修", "講座"}},
			{"観光", []string{"観光", "ホテル", "旅館", "民泊", "ツアー", "宿泊"}},
			{"建設", []string{"建設", "建築", "土木", "リフォーム", "工事"}},
			{"サービス業", []string{"サービス", "コンサルティング", "デザイン", "広告", "マーケティング"}},
		},
		Categories: []LabelTriggers{
			{"DX・デジタル化", []string{"dx", "デジタル", "it化", "システム", "オンライン", "ec", "web"}},
			{"省エネ・環境", []string{"省エネ", "環境", "エコ", "再生可能", "太陽光", "sdgs", "co2"}},
			{"設備投資", []string{"設備", "機械", "導入", "購入", "投資", "更新"}},
			{"人材育成", []string{"研修", "教育", "育成", "採用", "人材", "スキルアップ"}},
			{"新事業", []string{"新規", "新事業", "創業", "起業", "スタートアップ", "新商品"}},
			{"海外展開", []string{"輸出", "海外", "グローバル", "展開", "国際"}},
			{"研究開発", []string{"研究", "開発", "r&d", "技術開発", "イノベーション"}},
			{"事業承継", []string{"事業承継", "後継者", "承継", "世代交代"}},
			{"働き方改革", []string{"働き方", "テレワーク", "在宅", "労働環境", "福利厚生"}},
			{"販路開拓", []string{"販路", "マーケティング", "pr", "広告", "展示会"}},
		},
		Prefectures: defaultPrefectures(),
	}
}

// defaultPrefectures returns the 47 prefectures in the conventional
// north-to-south order. Detection is first-match-wins over this order, so
// the order is part of the behavior (e.g. 東京 wins over 京都 for pages
// mentioning 東京都, whose last two characters also spell 京都).
func defaultPrefectures() []Region {
	short := []string{
		"北海道", "青森", "岩手", "宮城", "秋田", "山形", "福島",
		"茨城", "栃木", "群馬", "埼玉", "千葉", "東京", "神奈川",
		"新潟", "富山", "石川", "福井", "山梨", "長野", "岐阜",
		"静岡", "愛知", "三重", "滋賀", "京都", "大阪", "兵庫",
		"奈良", "和歌山", "鳥取", "島根", "岡山", "広島", "山口",
		"徳島", "香川", "愛媛", "高知", "福岡", "佐賀", "長崎",
		"熊本", "大分", "宮崎", "鹿児島", "沖縄",
	}

	regions := make([]Region, len(short))
	for i, name := range short {
		regions[i] = Region{Name: name, Canonical: canonicalPrefecture(name)}
	}
	return regions
}

// canonicalPrefecture appends the administrative suffix used on subsidy
// records (都/道/府/県) to a short prefecture name.
func canonicalPrefecture(name string) string {
	switch name {
	case "北海道":
		return name
	case "東京":
		return name + "都"
	case "京都", "大阪":
		return name + "府"
	default:
		return name + "県"
	}
}
