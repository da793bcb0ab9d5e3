package handlers

import "github.com/labstack/echo/v4"

// Handlers groups every handler served under /api/v1
type Handlers struct {
	Health   *HealthHandler
	KPI      *KPIHandler
	Sales    *SalesHandler
	Pipeline *PipelineHandler
}

// Register mounts the API routes on g
func Register(g *echo.Group, h Handlers) {
	g.GET("/health", h.Health.Health)
	g.GET("/kpis", h.KPI.GetKPIs)

	g.GET("/sales", h.Sales.GetSales)
	g.GET("/filters/options", h.Sales.GetFilterOptions)

	reportsGroup := g.Group("/reports")
	reportsGroup.GET("/monthly", h.Sales.GetMonthlyTrend)
	reportsGroup.GET("/products", h.Sales.GetProductPerformance)
	reportsGroup.GET("/segments", h.Sales.GetSegmentDistribution)
	reportsGroup.GET("/campaigns", h.Sales.GetCampaignPerformance)
	reportsGroup.GET("/growth", h.Sales.GetSalesGrowth)
	reportsGroup.GET("/forecast", h.Sales.GetForecast)

	g.GET("/campaigns/:name/orders", h.Sales.GetCampaignOrders)
	g.GET("/exports/sales", h.Sales.ExportSales)

	pipelineGroup := g.Group("/pipeline")
	pipelineGroup.POST("/run", h.Pipeline.RunPipeline)
	pipelineGroup.GET("/runs", h.Pipeline.ListRuns)
	pipelineGroup.GET("/freshness", h.Pipeline.GetFreshness)
}
