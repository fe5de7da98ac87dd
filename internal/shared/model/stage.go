package model

// AgentKind Agent 类型（封闭集合）
type AgentKind string

const (
	AgentFlight         AgentKind = "flight"
	AgentHotel          AgentKind = "hotel"
	AgentRecommendation AgentKind = "recommendation"
	AgentItinerary      AgentKind = "itinerary"
	AgentBudget         AgentKind = "budget"
)

// Stage1Agents 第一阶段并行执行的 Agent
var Stage1Agents = []AgentKind{AgentFlight, AgentHotel, AgentRecommendation}

// Valid 是否为已知 Agent
func (k AgentKind) Valid() bool {
	switch k {
	case AgentFlight, AgentHotel, AgentRecommendation, AgentItinerary, AgentBudget:
		return true
	}
	return false
}

// Section 在 TripPlan 中对应的段名
func (k AgentKind) Section() string {
	switch k {
	case AgentFlight:
		return "flights"
	case AgentHotel:
		return "hotels"
	case AgentRecommendation:
		return "recommendations"
	case AgentItinerary:
		return "itinerary"
	case AgentBudget:
		return "budget_analysis"
	}
	return string(k)
}

// StageResults 各 Agent 的结果槽位，每个 Agent 只写自己的槽位
type StageResults struct {
	Flights         *FlightResult         `json:"flights,omitempty"`
	Hotels          *HotelResult          `json:"hotels,omitempty"`
	Recommendations *RecommendationResult `json:"recommendations,omitempty"`
	Itinerary       *ItineraryResult      `json:"itinerary,omitempty"`
	Budget          *BudgetResult         `json:"budget,omitempty"`
}

// Set 将 from 中 kind 对应的槽位复制到当前结果
func (s *StageResults) Set(kind AgentKind, from *StageResults) {
	if from == nil {
		return
	}
	switch kind {
	case AgentFlight:
		s.Flights = from.Flights
	case AgentHotel:
		s.Hotels = from.Hotels
	case AgentRecommendation:
		s.Recommendations = from.Recommendations
	case AgentItinerary:
		s.Itinerary = from.Itinerary
	case AgentBudget:
		s.Budget = from.Budget
	}
}

// Has 槽位是否已填充
func (s *StageResults) Has(kind AgentKind) bool {
	switch kind {
	case AgentFlight:
		return s.Flights != nil
	case AgentHotel:
		return s.Hotels != nil
	case AgentRecommendation:
		return s.Recommendations != nil
	case AgentItinerary:
		return s.Itinerary != nil
	case AgentBudget:
		return s.Budget != nil
	}
	return false
}

// ProvenanceOf 槽位的来源信息，未填充时返回零值
func (s *StageResults) ProvenanceOf(kind AgentKind) (Provenance, bool) {
	switch kind {
	case AgentFlight:
		if s.Flights != nil {
			return s.Flights.Provenance, true
		}
	case AgentHotel:
		if s.Hotels != nil {
			return s.Hotels.Provenance, true
		}
	case AgentRecommendation:
		if s.Recommendations != nil {
			return s.Recommendations.Provenance, true
		}
	case AgentItinerary:
		if s.Itinerary != nil {
			return s.Itinerary.Provenance, true
		}
	case AgentBudget:
		if s.Budget != nil {
			return s.Budget.Provenance, true
		}
	}
	return Provenance{}, false
}

// Stage1Count 第一阶段已返回的 Agent 数
func (s *StageResults) Stage1Count() int {
	n := 0
	for _, k := range Stage1Agents {
		if s.Has(k) {
			n++
		}
	}
	return n
}
