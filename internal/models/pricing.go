package models

import "fmt"

// Plan is a credit pack shown on the pricing page. Price is in cents.
type Plan struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Price       int64    `json:"price"`
	Credits     int64    `json:"credits"`
	Description string   `json:"description"`
	Features    []string `json:"features"`
	Highlighted bool     `json:"highlighted,omitzero"`
}

const PlanFree = "free"

var Plans = []Plan{
	{
		ID:          PlanFree,
		Name:        "Free",
		Price:       0,
		Credits:     DefaultWelcomeBonusCredits,
		Description: "Try it out with 5 free generations",
		Features: []string{
			"5 image generations",
			"All artistic styles",
			"Standard resolution",
			"Reference image support",
		},
	},
	{
		ID:          "starter",
		Name:        "Starter",
		Price:       999,
		Credits:     100,
		Description: "Perfect for casual creators",
		Features: []string{
			"100 image generations",
			"All artistic styles",
			"High resolution output",
			"Reference image support",
			"Priority generation queue",
		},
	},
	{
		ID:          "pro",
		Name:        "Pro",
		Price:       2999,
		Credits:     500,
		Description: "Best value for power users",
		Features: []string{
			"500 image generations",
			"All artistic styles",
			"High resolution output",
			"Reference image support",
			"Priority generation queue",
			"Early access to new features",
		},
		Highlighted: true,
	},
}

func GetPlan(id string) (Plan, bool) {
	for _, p := range Plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// IsPurchasable reports whether the plan can be bought through checkout.
func (p Plan) IsPurchasable() bool {
	return p.ID != PlanFree && p.Price > 0
}

// ProductName is the line item name shown on the hosted checkout page.
func (p Plan) ProductName() string {
	return fmt.Sprintf("%s - %d Credits", p.Name, p.Credits)
}
