package firerisk

import "math"

// saturationVapourPressure returns es(T) in hPa.
func (p Params) saturationVapourPressure(tempC float64) float64 {
	return p.MagnusA * math.Exp(p.MagnusB*tempC/(p.MagnusC+tempC))
}

// indoorConditions brings outdoor air into the heated interior at constant vapour
// pressure. It returns the interior temperature and relative humidity as a
// fraction in [0, 1].
func (p Params) indoorConditions(tempC, humidityPct float64) (float64, float64) {
	indoor := math.Max(p.IndoorTemperature, tempC)
	vapour := humidityPct / 100 * p.saturationVapourPressure(tempC)
	h := vapour / p.saturationVapourPressure(indoor)
	return indoor, clamp(h, 0, 1)
}

// OutdoorEquilibrium returns the wood equilibrium moisture content (kg/kg) in
// the open air itself.
func (p Params) OutdoorEquilibrium(tempC, humidityPct float64) float64 {
	return equilibriumMoistureContent(clamp(humidityPct/100, 0, 1), tempC)
}

// InteriorEquilibrium returns the wood equilibrium moisture content (kg/kg)
// inside the heated structure once the outdoor air has been drawn in.
func (p Params) InteriorEquilibrium(tempC, humidityPct float64) float64 {
	indoor, h := p.indoorConditions(tempC, humidityPct)
	return equilibriumMoistureContent(h, indoor)
}

// emcCoefficients are the Hailwood-Horrobin isotherm parameters as polynomials
// of temperature (°C), from Simpson's fit in the USDA Wood Handbook.
func emcCoefficients(tempC float64) (w, k, k1, k2 float64) {
	t := tempC
	w = 349 + 1.29*t + 0.0135*t*t
	k = 0.805 + 0.000736*t - 0.00000273*t*t
	k1 = 6.27 - 0.00938*t - 0.000303*t*t
	k2 = 1.91 + 0.0407*t - 0.000293*t*t
	return w, k, k1, k2
}

// equilibriumMoistureContent evaluates the Hailwood-Horrobin isotherm for a
// relative humidity fraction h. It is 0 at h = 0, increases with h, and stays
// finite at h = 1 because k < 1 for every temperature the model sees.
func equilibriumMoistureContent(h, tempC float64) float64 {
	w, k, k1, k2 := emcCoefficients(tempC)
	kh := k * h
	hydrate := kh / (1 - kh)
	dissolved := (k1*kh + 2*k1*k2*kh*kh) / (1 + k1*kh + k1*k2*kh*kh)
	return 1800 / w * (hydrate + dissolved) / 100
}

// timeConstant returns the relaxation time constant in hours. Wind is >= 0 for
// validated input, so the divisor is >= 1.
func (p Params) timeConstant(windSpeed float64) float64 {
	return p.TauStill / (1 + p.WindCoupling*windSpeed)
}

// TTF maps a moisture content to time to flashover in hours.
func (p Params) TTF(moisture float64) float64 {
	return p.DryTTF * math.Exp(p.MoistureSlope*moisture)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
