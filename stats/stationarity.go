package stats

import "math"

// ADFResult is the outcome of an Augmented Dickey-Fuller test.
type ADFResult struct {
	Statistic    float64
	PValue       float64
	Lags         int
	NObs         int
	CriticalVals map[string]float64 // 1%, 5%, 10%
	IsStationary bool
}

// ADF tests for a unit root with a constant and maxLag lagged differences
// (default floor((n-1)^(1/3))). The null hypothesis is a unit root, so
// IsStationary reports rejection at 5%. Returns nil for fewer than 10
// usable observations or a singular regression.
func ADF(values []float64, maxLag int) *ADFResult {
	n := len(values)
	if n < 10 {
		return nil
	}

	if maxLag <= 0 {
		maxLag = int(math.Floor(math.Pow(float64(n-1), 1.0/3.0)))
	}
	if maxLag >= n-1 {
		maxLag = n - 2
	}

	diff := difference(values, 1)

	// delta_y_t = a + b*y_{t-1} + sum(g_i * delta_y_{t-i}); the statistic is
	// the t ratio of b.
	nObs := n - maxLag - 1
	if nObs < 10 {
		return nil
	}

	y := make([]float64, nObs)
	x := make([][]float64, nObs)
	for i := 0; i < nObs; i++ {
		t := i + maxLag
		y[i] = diff[t]

		x[i] = make([]float64, 2+maxLag)
		x[i][0] = 1
		x[i][1] = values[t]
		for j := 1; j <= maxLag; j++ {
			x[i][1+j] = diff[t-j]
		}
	}

	coeffs, se := olsRegression(x, y)
	if len(coeffs) < 2 || len(se) < 2 || se[1] == 0 {
		return nil
	}

	tStat := coeffs[1] / se[1]
	criticalVals := map[string]float64{
		"1%":  -3.43,
		"5%":  -2.86,
		"10%": -2.57,
	}
	pValue := mackinnonPValue(tStat)
	isStationary := pValue < 0.05

	return &ADFResult{
		Statistic:    tStat,
		PValue:       pValue,
		Lags:         maxLag,
		NObs:         nObs,
		CriticalVals: criticalVals,
		IsStationary: isStationary,
	}
}

// KPSSResult is the outcome of a KPSS test.
type KPSSResult struct {
	Statistic    float64
	PValue       float64
	Lags         int
	CriticalVals map[string]float64
	IsStationary bool
}

// KPSS runs the Kwiatkowski-Phillips-Schmidt-Shin test. regression is "c"
// for level stationarity or "ct" for trend stationarity. The null hypothesis
// is stationarity, so IsStationary holds when the p-value is at least 0.05.
func KPSS(values []float64, regression string, nlags int) *KPSSResult {
	n := len(values)
	if n < 10 {
		return nil
	}

	if nlags <= 0 {
		nlags = int(math.Ceil(12 * math.Pow(float64(n)/100, 0.25)))
	}
	if nlags >= n {
		nlags = n - 1
	}

	residuals := make([]float64, n)
	if regression == "ct" {
		sumT := 0.0
		sumY := 0.0
		sumTY := 0.0
		sumT2 := 0.0
		for i, v := range values {
			t := float64(i)
			sumT += t
			sumY += v
			sumTY += t * v
			sumT2 += t * t
		}
		nf := float64(n)
		b := (nf*sumTY - sumT*sumY) / (nf*sumT2 - sumT*sumT)
		a := (sumY - b*sumT) / nf

		for i, v := range values {
			residuals[i] = v - a - b*float64(i)
		}
	} else {
		mean := 0.0
		for _, v := range values {
			mean += v
		}
		mean /= float64(n)
		for i, v := range values {
			residuals[i] = v - mean
		}
	}

	cumSum := make([]float64, n)
	cumSum[0] = residuals[0]
	for i := 1; i < n; i++ {
		cumSum[i] = cumSum[i-1] + residuals[i]
	}

	// Newey-West long-run variance with Bartlett weights.
	s2 := 0.0
	for _, r := range residuals {
		s2 += r * r
	}
	s2 /= float64(n)

	for l := 1; l <= nlags; l++ {
		cov := 0.0
		for i := l; i < n; i++ {
			cov += residuals[i] * residuals[i-l]
		}
		cov /= float64(n)
		weight := 1.0 - float64(l)/float64(nlags+1)
		s2 += 2 * weight * cov
	}

	if s2 <= 0 {
		s2 = 1e-10
	}

	etaSq := 0.0
	for _, cs := range cumSum {
		etaSq += cs * cs
	}
	kpssStat := etaSq / (float64(n) * float64(n) * s2)

	var criticalVals map[string]float64
	if regression == "ct" {
		criticalVals = map[string]float64{
			"10%": 0.119,
			"5%":  0.146,
			"1%":  0.216,
		}
	} else {
		criticalVals = map[string]float64{
			"10%": 0.347,
			"5%":  0.463,
			"1%":  0.739,
		}
	}

	pValue := kpssPValue(kpssStat, regression)
	isStationary := kpssStat <= criticalVals["5%"]

	return &KPSSResult{
		Statistic:    kpssStat,
		PValue:       pValue,
		Lags:         nlags,
		CriticalVals: criticalVals,
		IsStationary: isStationary,
	}
}

// olsRegression returns least squares coefficients and standard errors.
func olsRegression(x [][]float64, y []float64) (coeffs, stdErrors []float64) {
	n := len(y)
	if n == 0 || len(x) != n {
		return nil, nil
	}

	k := len(x[0]) // number of regressors

	xtx := make([][]float64, k)
	for i := range xtx {
		xtx[i] = make([]float64, k)
	}

	xty := make([]float64, k)

	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			xty[j] += x[i][j] * y[i]
			for l := 0; l < k; l++ {
				xtx[j][l] += x[i][j] * x[i][l]
			}
		}
	}

	xtxInv := invertMatrix(xtx)
	if xtxInv == nil {
		return nil, nil
	}

	coeffs = make([]float64, k)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			coeffs[i] += xtxInv[i][j] * xty[j]
		}
	}

	sse := 0.0
	for i := 0; i < n; i++ {
		pred := 0.0
		for j := 0; j < k; j++ {
			pred += coeffs[j] * x[i][j]
		}
		residual := y[i] - pred
		sse += residual * residual
	}

	if n <= k {
		return coeffs, nil
	}

	s2 := sse / float64(n-k)
	stdErrors = make([]float64, k)
	for i := 0; i < k; i++ {
		stdErrors[i] = math.Sqrt(s2 * xtxInv[i][i])
	}

	return coeffs, stdErrors
}

// invertMatrix inverts a square matrix using Gauss-Jordan elimination.
func invertMatrix(m [][]float64) [][]float64 {
	n := len(m)
	if n == 0 {
		return nil
	}

	aug := make([][]float64, n)
	for i := 0; i < n; i++ {
		aug[i] = make([]float64, 2*n)
		copy(aug[i][:n], m[i])
		aug[i][n+i] = 1
	}

	for i := 0; i < n; i++ {
		maxRow := i
		for k := i + 1; k < n; k++ {
			if math.Abs(aug[k][i]) > math.Abs(aug[maxRow][i]) {
				maxRow = k
			}
		}
		aug[i], aug[maxRow] = aug[maxRow], aug[i]

		if math.Abs(aug[i][i]) < 1e-10 {
			return nil
		}

		pivot := aug[i][i]
		for j := 0; j < 2*n; j++ {
			aug[i][j] /= pivot
		}

		for k := 0; k < n; k++ {
			if k != i {
				factor := aug[k][i]
				for j := 0; j < 2*n; j++ {
					aug[k][j] -= factor * aug[i][j]
				}
			}
		}
	}

	result := make([][]float64, n)
	for i := 0; i < n; i++ {
		result[i] = make([]float64, n)
		copy(result[i], aug[i][n:])
	}

	return result
}

// mackinnonPValue interpolates the asymptotic MacKinnon critical values for
// the constant-only regression.
func mackinnonPValue(stat float64) float64 {
	knots := []struct{ stat, p float64 }{
		{-3.96, 0.001},
		{-3.43, 0.01},
		{-2.86, 0.05},
		{-2.57, 0.10},
		{-1.94, 0.25},
		{-1.62, 0.50},
	}
	if stat <= knots[0].stat {
		return knots[0].p
	}
	for i := 1; i < len(knots); i++ {
		if stat <= knots[i].stat {
			lo, hi := knots[i-1], knots[i]
			return lo.p + (stat-lo.stat)/(hi.stat-lo.stat)*(hi.p-lo.p)
		}
	}
	return math.Min(0.5+(stat+1.62)*0.25, 0.99)
}

// kpssPValue maps the statistic onto the tabulated 1%, 5% and 10% points.
func kpssPValue(stat float64, regression string) float64 {
	if regression == "ct" {
		switch {
		case stat > 0.216:
			return 0.01
		case stat > 0.146:
			return 0.05
		case stat > 0.119:
			return 0.10
		default:
			return 0.10 + (0.119-stat)*2
		}
	}

	switch {
	case stat > 0.739:
		return 0.01
	case stat > 0.463:
		return 0.05
	case stat > 0.347:
		return 0.10
	default:
		return 0.10 + (0.347-stat)*0.5
	}
}
