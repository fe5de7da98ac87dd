package agent

import (
	"context"
	"sort"

	"trip-planner/internal/provider"
	"trip-planner/internal/shared/model"
)

// HotelAgent 住宿搜索
type HotelAgent struct {
	deps Deps
}

// Kind Agent 类型
func (a *HotelAgent) Kind() model.AgentKind {
	return model.AgentHotel
}

// Run 搜索住宿
//
// 默认按总价升序；luxury 按 评分×20 + 价格等级×10 降序。排序均保持数据源原始顺序。
func (a *HotelAgent) Run(ctx context.Context, in *Input) (*model.StageResults, error) {
	req := in.Request
	c := provider.HotelCriteria{
		Destination: req.Destination,
		CheckIn:     req.StartDate,
		CheckOut:    req.EndDate,
		Travelers:   req.Travelers,
		Style:       req.Preferences.AccommodationStyle,
		MaxTotal:    req.Budget.MulRatio(ShareHotels),
	}

	var live func(context.Context) ([]model.HotelOption, error)
	name := ""
	if a.deps.Hotels != nil {
		name = a.deps.Hotels.Name()
		live = func(ctx context.Context) ([]model.HotelOption, error) {
			return a.deps.Hotels.SearchHotels(ctx, c)
		}
	}
	options, prov, err := searchWithFallback(ctx, &a.deps, a.Kind(), name, live,
		func(ctx context.Context) ([]model.HotelOption, error) {
			return a.deps.Fallback.SearchHotels(ctx, c)
		})
	if err != nil {
		return nil, err
	}

	RankHotels(options, c.Style)
	options = capByPrice(options, c.MaxTotal, func(o model.HotelOption) model.Money { return o.EstimatedTotal })
	if len(options) > maxHotelOptions {
		options = options[:maxHotelOptions]
	}

	return &model.StageResults{
		Hotels: &model.HotelResult{Provenance: prov, Nights: req.Nights(), Options: options},
	}, nil
}

// luxuryScore 豪华住宿综合评分
func luxuryScore(h model.HotelOption) float64 {
	return h.Rating*20 + float64(h.PriceLevel)*10
}

// RankHotels 按住宿档次排序（稳定）
func RankHotels(options []model.HotelOption, style model.AccommodationStyle) {
	if style == model.AccommodationLuxury {
		sort.SliceStable(options, func(i, j int) bool {
			return luxuryScore(options[i]) > luxuryScore(options[j])
		})
		return
	}
	sort.SliceStable(options, func(i, j int) bool {
		return options[i].EstimatedTotal < options[j].EstimatedTotal
	})
}
