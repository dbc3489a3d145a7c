package gateway

// Response is either a ChatResponse or a *NutritionInfo.
type Response interface {
	Kind() Kind
}

type ChatResponse struct {
	Message string `json:"message"`
}

func (ChatResponse) Kind() Kind { return KindChat }

// NutritionInfo is the estimate for one photographed meal.
type NutritionInfo struct {
	FoodName    string   `json:"food_name"`
	Calories    int      `json:"calories"`
	Protein     int      `json:"protein"`
	Carbs       int      `json:"carbs"`
	Fat         int      `json:"fat"`
	Fiber       int      `json:"fiber"`
	Description string   `json:"description"`
	Suggestions []string `json:"suggestions"`
}

func (*NutritionInfo) Kind() Kind { return KindFoodAnalysis }
