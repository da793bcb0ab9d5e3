package cache

import "fmt"

// KPIPattern matches every cached KPI report
const KPIPattern = "kpis:*"

// KPIKey returns the cache key for a KPI report computed with the given parameters
func KPIKey(cacCutoff string, growthYear int) string {
	return fmt.Sprintf("kpis:%s:%d", cacCutoff, growthYear)
}
