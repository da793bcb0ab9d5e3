package reports

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/jordanlanch/commercebi/pkg/domain"
)

// GrowthPoint is monthly sales with the change from the previous month in the series
type GrowthPoint struct {
	Month string  `json:"month"`
	Sales float64 `json:"sales"`
	// GrowthRate is the percent change from the previous point
	GrowthRate float64 `json:"growth_rate"`
	// GrowthUndefined is set for the first point and after a zero-sales month
	GrowthUndefined bool `json:"growth_undefined"`
}

// SalesGrowthSeries returns sales per year-month with month-over-month growth
func SalesGrowthSeries(orders []domain.Order) []GrowthPoint {
	trend := MonthlyTrend(orders)
	out := make([]GrowthPoint, 0, len(trend))
	for i, p := range trend {
		gp := GrowthPoint{Month: p.Month, Sales: p.Sales, GrowthUndefined: true}
		if i > 0 && trend[i-1].Sales != 0 {
			prev := trend[i-1].Sales
			gp.GrowthRate = round2((p.Sales - prev) / prev * 100)
			gp.GrowthUndefined = false
		}
		out = append(out, gp)
	}
	return out
}

// ErrInsufficientData is returned when a forecast has fewer than two months to fit
var ErrInsufficientData = errors.New("forecast needs at least two months of sales")

// MaxForecastDegree is the highest polynomial degree tried by Forecast
const MaxForecastDegree = 3

const forecastFolds = 3

// ForecastPoint is one month of actual and fitted sales
type ForecastPoint struct {
	Month     string  `json:"month"`
	Spend     float64 `json:"spend"`
	Actual    float64 `json:"actual"`
	Predicted float64 `json:"predicted"`
}

// ForecastResult is a polynomial least-squares fit of monthly sales on
// standardized monthly campaign spend.
type ForecastResult struct {
	// Degree is the polynomial degree picked by cross-validation
	Degree int `json:"degree"`
	// Coefficients are ordered from the constant term up and apply to the
	// standardized spend (spend - SpendMean) / SpendScale.
	Coefficients []float64 `json:"coefficients"`
	SpendMean    float64   `json:"spend_mean"`
	SpendScale   float64   `json:"spend_scale"`
	// CVMSE is the mean held-out squared error of the picked degree. It is zero
	// when there were too few months to cross-validate.
	CVMSE  float64         `json:"cv_mse"`
	RMSE   float64         `json:"rmse"`
	Points []ForecastPoint `json:"points"`
}

// Predict returns the fitted sales for a spend level
func (f *ForecastResult) Predict(spend float64) float64 {
	return polyModel{coef: f.Coefficients, mean: f.SpendMean, scale: f.SpendScale}.predict(spend)
}

// polyModel is a polynomial in standardized x. A zero scale maps every x to 0,
// leaving only the constant term.
type polyModel struct {
	coef        []float64
	mean, scale float64
}

func (m polyModel) predict(x float64) float64 {
	var z float64
	if m.scale != 0 {
		z = (x - m.mean) / m.scale
	}
	var y, pow float64 = 0, 1
	for _, c := range m.coef {
		y += c * pow
		pow *= z
	}
	return y
}

// fitPoly standardizes x and solves the least-squares system for the powers
// z^0..z^degree. Wide systems get the minimum-norm solution.
func fitPoly(x, y []float64, degree int) (polyModel, error) {
	mean, scale := stat.PopMeanStdDev(x, nil)
	m := polyModel{coef: make([]float64, degree+1), mean: mean, scale: scale}
	if scale == 0 {
		m.coef[0] = stat.Mean(y, nil)
		return m, nil
	}

	cols := degree + 1
	data := make([]float64, 0, len(x)*cols)
	for _, v := range x {
		z, pow := (v-mean)/scale, 1.0
		for j := 0; j < cols; j++ {
			data = append(data, pow)
			pow *= z
		}
	}

	var coef mat.VecDense
	if err := coef.SolveVec(mat.NewDense(len(x), cols, data), mat.NewVecDense(len(y), y)); err != nil {
		return polyModel{}, fmt.Errorf("degree %d fit failed: %w", degree, err)
	}
	for j := range m.coef {
		m.coef[j] = coef.AtVec(j)
	}
	return m, nil
}

// crossValidate returns the mean held-out MSE of a degree over contiguous,
// unshuffled folds. The first len(x)%folds folds take one extra row.
func crossValidate(x, y []float64, degree, folds int) (float64, error) {
	n := len(x)
	var total float64
	start := 0
	for k := 0; k < folds; k++ {
		size := n / folds
		if k < n%folds {
			size++
		}
		end := start + size

		trainX := append(append([]float64{}, x[:start]...), x[end:]...)
		trainY := append(append([]float64{}, y[:start]...), y[end:]...)
		m, err := fitPoly(trainX, trainY, degree)
		if err != nil {
			return 0, err
		}

		var sse float64
		for i := start; i < end; i++ {
			diff := y[i] - m.predict(x[i])
			sse += diff * diff
		}
		total += sse / float64(size)
		start = end
	}
	return total / float64(folds), nil
}

// Forecast fits monthly sales as a polynomial of monthly campaign spend over
// every month with sales. Spend is bucketed by campaign start month; months
// without campaigns have zero spend. Degrees 1 to MaxForecastDegree are scored
// by 3-fold cross-validated MSE and the lowest wins, ties going to the lower
// degree. With fewer than three months there is nothing to hold out, so the fit
// is linear. The picked degree is refit on every month for the reported curve.
func Forecast(orders []domain.Order, campaigns []domain.Campaign) (*ForecastResult, error) {
	trend := MonthlyTrend(orders)
	if len(trend) < 2 {
		return nil, ErrInsufficientData
	}

	spend := make(map[string]float64)
	for _, c := range campaigns {
		spend[c.StartDate.Format("2006-01")] += c.Spend
	}

	points := make([]ForecastPoint, len(trend))
	x := make([]float64, len(trend))
	y := make([]float64, len(trend))
	for i, p := range trend {
		points[i] = ForecastPoint{Month: p.Month, Spend: round2(spend[p.Month]), Actual: p.Sales}
		x[i], y[i] = points[i].Spend, points[i].Actual
	}

	degree, cvMSE := 1, 0.0
	if len(x) >= forecastFolds {
		best := math.Inf(1)
		for d := 1; d <= MaxForecastDegree; d++ {
			mse, err := crossValidate(x, y, d, forecastFolds)
			if err != nil {
				continue
			}
			// within float noise counts as a tie
			if mse < best-1e-9*math.Max(1, best) {
				degree, best = d, mse
			}
		}
		if !math.IsInf(best, 1) {
			cvMSE = best
		}
	}

	model, err := fitPoly(x, y, degree)
	if err != nil && degree != 1 {
		degree = 1
		model, err = fitPoly(x, y, degree)
	}
	if err != nil {
		return nil, err
	}

	var sse float64
	for i := range points {
		pred := model.predict(x[i])
		diff := y[i] - pred
		sse += diff * diff
		points[i].Predicted = round2(pred)
	}

	return &ForecastResult{
		Degree:       degree,
		Coefficients: model.coef,
		SpendMean:    model.mean,
		SpendScale:   model.scale,
		CVMSE:        round2(cvMSE),
		RMSE:         round2(math.Sqrt(sse / float64(len(points)))),
		Points:       points,
	}, nil
}
