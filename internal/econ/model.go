package econ

import "fmt"

// Physical constants of the model.
const (
	btuPerGallonOil = 135000.0
	btuPerKWh       = 3412.0
	// kWh the oil heating system itself uses per MMBtu delivered; a boiler is
	// about 2, a furnace 5 to 9.
	oilSystemKWhPerMMBtu = 4.0
)

// Inputs describe one heat pump replacing part of an oil heating load.
// Rates and escalations are fractions (0.03 for 3%).
type Inputs struct {
	InstallCost          float64 `json:"install_cost"`
	GallonsSaved         float64 `json:"gallons_saved"`
	HeatPumpCOP          float64 `json:"hp_cop"`
	OilPrice             float64 `json:"oil_price"`
	OilEscalation        float64 `json:"oil_escalation"`
	ElecPrice            float64 `json:"elec_price"`
	Rebate               float64 `json:"rebate"`
	RebateAdminCost      float64 `json:"rebate_admin_cost"`
	Life                 int     `json:"life"`
	OilEfficiency        float64 `json:"oil_efficiency"`
	ElecEscalation       float64 `json:"elec_escalation"`
	ProductionCost       float64 `json:"production_cost"`
	ProductionEscalation float64 `json:"production_escalation"`
	TDLosses             float64 `json:"td_losses"`
	DiscountRate         float64 `json:"discount_rate"`
	SalesTax             float64 `json:"sales_tax"`
}

// DefaultInputs is a typical Southeast Alaska oil-to-heat-pump conversion.
func DefaultInputs() Inputs {
	return Inputs{
		InstallCost:          3600,
		GallonsSaved:         400,
		HeatPumpCOP:          2.5,
		OilPrice:             3.0,
		OilEscalation:        0.03,
		ElecPrice:            0.18,
		Rebate:               1700,
		RebateAdminCost:      200,
		Life:                 14,
		OilEfficiency:        0.80,
		ElecEscalation:       0.023,
		ProductionCost:       0.10,
		ProductionEscalation: 0.025,
		TDLosses:             0.06,
		DiscountRate:         0.05,
		SalesTax:             0.07,
	}
}

func (in Inputs) Validate() error {
	switch {
	case in.Life < 1 || in.Life > 50:
		return fmt.Errorf("%w: life must be 1..50 years, got %d", ErrInvalidInputs, in.Life)
	case in.HeatPumpCOP <= 0:
		return fmt.Errorf("%w: hp_cop must be positive", ErrInvalidInputs)
	case in.OilEfficiency <= 0 || in.OilEfficiency > 1:
		return fmt.Errorf("%w: oil_efficiency must be in (0, 1]", ErrInvalidInputs)
	case in.TDLosses < 0 || in.TDLosses >= 1:
		return fmt.Errorf("%w: td_losses must be in [0, 1)", ErrInvalidInputs)
	case in.DiscountRate <= -1:
		return fmt.Errorf("%w: discount_rate must exceed -1", ErrInvalidInputs)
	}
	return nil
}

// CashFlow is a yearly series, year 0 being the installation year.
type CashFlow struct {
	Values []float64 `json:"values"`
	NPV    float64   `json:"npv"`
	IRR    *float64  `json:"irr"` // nil when undefined
}

// Result is the rebate model for one set of inputs.
type Result struct {
	Inputs      Inputs   `json:"inputs"`
	HeatPumpKWh float64  `json:"hp_kwh"`
	AvoidedKWh  float64  `json:"avoided_kwh"`
	NetKWh      float64  `json:"net_kwh"`
	Customer    CashFlow `json:"customer"`
	Utility     CashFlow `json:"utility"`
	Combined    CashFlow `json:"combined"`
}

// Model computes the customer and utility cash flows of a rebated heat pump.
// The customer saves escalating oil costs, pays escalating electric costs on
// the net kWh and the taxed install cost less the rebate. The utility sells
// the net kWh at retail, buys it at production cost grossed up for losses,
// and pays the rebate plus its administration.
func Model(in Inputs) (Result, error) {
	if err := in.Validate(); err != nil {
		return Result{}, err
	}

	heatBtu := in.GallonsSaved * btuPerGallonOil * in.OilEfficiency
	hpKWh := heatBtu / btuPerKWh / in.HeatPumpCOP
	avoidedKWh := heatBtu / 1e6 * oilSystemKWhPerMMBtu
	netKWh := hpKWh - avoidedKWh

	elec := Pattern(in.ElecEscalation, in.Life)
	prod := Pattern(in.ProductionEscalation, in.Life)
	oil := Pattern(in.OilEscalation, in.Life)

	n := in.Life + 1
	customer := make([]float64, n)
	utility := make([]float64, n)
	combined := make([]float64, n)
	for y := 0; y < n; y++ {
		customer[y] = oil[y]*in.GallonsSaved*in.OilPrice*(1+in.SalesTax) -
			elec[y]*in.ElecPrice*netKWh*(1+in.SalesTax)
		utility[y] = netKWh*in.ElecPrice*elec[y] -
			netKWh/(1-in.TDLosses)*in.ProductionCost*prod[y]
	}
	customer[0] += -in.InstallCost*(1+in.SalesTax) + in.Rebate
	utility[0] += -in.Rebate - in.RebateAdminCost
	for y := range combined {
		combined[y] = customer[y] + utility[y]
	}

	return Result{
		Inputs:      in,
		HeatPumpKWh: hpKWh,
		AvoidedKWh:  avoidedKWh,
		NetKWh:      netKWh,
		Customer:    newCashFlow(customer, in.DiscountRate),
		Utility:     newCashFlow(utility, in.DiscountRate),
		Combined:    newCashFlow(combined, in.DiscountRate),
	}, nil
}

func newCashFlow(values []float64, rate float64) CashFlow {
	cf := CashFlow{Values: values, NPV: NPV(rate, values)}
	if r, ok := IRR(values); ok {
		cf.IRR = &r
	}
	return cf
}
