package ticket

// City groups the known venues of one city.
type City struct {
	Name   string   `json:"name"`
	Venues []string `json:"venues"`
}

var venues = []City{
	{"上海", []string{"上海文化广场", "上海大剧院", "美琪大戏院", "上音歌剧院", "1862时尚艺术中心", "人民大舞台", "云峰剧院", "共舞台", "上海大舞台", "东方艺术中心"}},
	{"北京", []string{"天桥艺术中心", "保利剧院", "二七剧场", "世纪剧院", "展览馆剧场", "国家大剧院", "喜剧院"}},
	{"广州", []string{"广州大剧院", "广东艺术剧院", "友谊剧院"}},
	{"深圳", []string{"深圳保利剧院", "滨海艺术中心", "南山文体中心"}},
	{"杭州", []string{"杭州大剧院", "余杭大剧院", "蝴蝶剧场", "临平大剧院"}},
	{"南京", []string{"南京保利大剧院", "江苏大剧院"}},
	{"武汉", []string{"武汉琴台大剧院", "武汉剧院"}},
	{"成都", []string{"四川大剧院", "城市音乐厅"}},
}

// Venues returns the venue catalog in display order.
func Venues() []City {
	out := make([]City, len(venues))
	for i, c := range venues {
		out[i] = City{Name: c.Name, Venues: append([]string(nil), c.Venues...)}
	}
	return out
}

// VenuesIn returns the venues of city, or nil for an unknown city.
func VenuesIn(city string) []string {
	for _, c := range venues {
		if c.Name == city {
			return append([]string(nil), c.Venues...)
		}
	}
	return nil
}
