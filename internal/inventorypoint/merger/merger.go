// Package merger projects per-ASIN, per-marketplace rows onto inventory
// points: one per ASIN for the EU and one per ASIN per non-EU country.
package merger

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/model"
)

const (
	// EUStoreLabel is the store value of every EU point.
	EUStoreLabel = "EU aggregate"

	multiStoreSuffix = "多店铺汇总"

	EffectiveDailySales  = 16.7
	TurnoverCap          = 999
	TurnoverExceededDays = 100
	LowInventoryDays     = 45
)

// SourceRow is one ASIN in one store and country, ready to merge.
type SourceRow struct {
	ASIN          string
	SKU           string
	Store         string
	StorePrefix   string
	Country       string
	MarketplaceID string

	ProductName  string
	Category     string
	SalesPerson  string
	DevName      string
	AveragePrice string
	SalesAmount  string
	NetSales     float64
	RefundRate   float64

	FbaAvailable   int64
	FbaInbound     int64
	FbaSellable    int64
	FbaUnsellable  int64
	LocalAvailable int64
	InboundShipped int64

	Sales7Days        int64
	TotalSales        float64
	AverageSales      float64
	OrderCount        int64
	PromotionalOrders int64

	AdImpressions int64
	AdClicks      int64
	AdSpend       float64
	AdOrderCount  int64
	AdSales       float64
}

func (r *SourceRow) stock() int64 { return r.FbaAvailable + r.FbaInbound }

// normalize fills the derived country and store prefix when absent.
func (r *SourceRow) normalize() {
	if r.Country == "" {
		r.Country = CountryOf(r.MarketplaceID, r.Store)
	}
	if r.StorePrefix == "" {
		r.StorePrefix = StorePrefix(r.Store)
	}
}

// StoreRepresentative is the row standing in for one store prefix in the
// EU merge, with the prefix's ad totals folded in.
type StoreRepresentative struct {
	Prefix  string
	Row     SourceRow
	Members int
}

// MergeGroup is every row of one ASIN bound for one region.
type MergeGroup struct {
	ASIN   string
	Region string
	Rows   []SourceRow
}

// Merge builds the inventory points of date from rows. Rows without an
// ASIN or a resolvable country are skipped and counted. Output is ordered
// by ASIN then marketplace.
func Merge(date time.Time, rows []SourceRow, now time.Time) ([]model.InventoryPoint, model.MergeStats) {
	date = model.DateOf(date)
	stats := model.MergeStats{DataDate: date, OriginalCount: len(rows), Timestamp: now}

	groups, skipped := group(rows)
	stats.SkippedRows = skipped

	points := make([]model.InventoryPoint, 0, len(groups))
	for _, g := range groups {
		var p model.InventoryPoint
		if g.Region == model.RegionEU {
			p = mergeEU(g)
			stats.EUPoints++
		} else {
			p = mergeCountry(g)
			stats.NonEUPoints++
		}
		p.DataDate = date
		ApplyAdMetrics(&p)
		ApplyHealth(&p)
		points = append(points, p)
	}

	slices.SortFunc(points, func(a, b model.InventoryPoint) int {
		return cmp.Or(cmp.Compare(a.ASIN, b.ASIN), cmp.Compare(a.Marketplace, b.Marketplace))
	})

	stats.MergedCount = len(points)
	if stats.OriginalCount > 0 {
		stats.CompressionRatio = float64(stats.MergedCount) / float64(stats.OriginalCount)
	}
	return points, stats
}

// group partitions rows by ASIN and region, preserving first-seen order
// inside each group.
func group(rows []SourceRow) ([]*MergeGroup, int) {
	type key struct{ asin, region string }
	index := make(map[key]*MergeGroup)
	var groups []*MergeGroup
	skipped := 0

	for _, r := range rows {
		r.normalize()
		if r.ASIN == "" || r.Country == "" {
			skipped++
			continue
		}
		region := r.Country
		if IsEU(r.Country) {
			region = model.RegionEU
		}
		k := key{r.ASIN, region}
		g, ok := index[k]
		if !ok {
			g = &MergeGroup{ASIN: r.ASIN, Region: region}
			index[k] = g
			groups = append(groups, g)
		}
		g.Rows = append(g.Rows, r)
	}
	return groups, skipped
}

// mergeCountry sums every row of one non-EU country.
func mergeCountry(g *MergeGroup) model.InventoryPoint {
	first := g.Rows[0]
	p := describe(first)
	p.ASIN = g.ASIN
	p.Marketplace = g.Region
	p.InventoryPointName = fmt.Sprintf("%s-%s", g.ASIN, g.Region)
	p.MergeType = model.MergeTypeNonEU
	p.StoreCount = len(g.Rows)

	prefixes := make([]string, 0, 1)
	for _, r := range g.Rows {
		addStock(&p, r)
		p.LocalAvailable += r.LocalAvailable
		addSales(&p, r)
		addAds(&p, r)
		if !slices.Contains(prefixes, r.StorePrefix) {
			prefixes = append(prefixes, r.StorePrefix)
		}
	}

	if len(prefixes) == 1 {
		p.Store = fmt.Sprintf("%s-%s", prefixes[0], g.Region)
	} else {
		p.Store = g.Region + multiStoreSuffix
	}
	p.MergedStores = prefixes
	return p
}

// Representatives picks, per store prefix, the row with the most FBA
// available plus inbound stock, first seen winning ties, and folds the
// prefix's ad totals into it.
func Representatives(rows []SourceRow) []StoreRepresentative {
	var reps []StoreRepresentative
	at := make(map[string]int)

	for _, r := range rows {
		i, ok := at[r.StorePrefix]
		if !ok {
			at[r.StorePrefix] = len(reps)
			reps = append(reps, StoreRepresentative{Prefix: r.StorePrefix, Row: r, Members: 1})
			continue
		}
		rep := &reps[i]
		rep.Members++

		best := rep.Row
		if r.stock() > best.stock() {
			best = r
		}
		best.AdImpressions = rep.Row.AdImpressions + r.AdImpressions
		best.AdClicks = rep.Row.AdClicks + r.AdClicks
		best.AdSpend = rep.Row.AdSpend + r.AdSpend
		best.AdOrderCount = rep.Row.AdOrderCount + r.AdOrderCount
		best.AdSales = rep.Row.AdSales + r.AdSales
		rep.Row = best
	}
	return reps
}

// mergeEU sums the representatives of every store prefix. Local warehouse
// stock is shared by all of them, so it takes the maximum.
func mergeEU(g *MergeGroup) model.InventoryPoint {
	reps := Representatives(g.Rows)

	p := describe(reps[0].Row)
	p.ASIN = g.ASIN
	p.Marketplace = model.RegionEU
	p.Store = EUStoreLabel
	p.InventoryPointName = g.ASIN + "-" + model.RegionEU
	p.MergeType = model.MergeTypeEU
	p.StoreCount = len(reps)

	prefixes := make([]string, 0, len(reps))
	for _, rep := range reps {
		addStock(&p, rep.Row)
		p.LocalAvailable = max(p.LocalAvailable, rep.Row.LocalAvailable)
		addSales(&p, rep.Row)
		addAds(&p, rep.Row)
		prefixes = append(prefixes, rep.Prefix)
	}
	p.MergedStores = prefixes
	return p
}

func describe(r SourceRow) model.InventoryPoint {
	return model.InventoryPoint{
		ProductName:  r.ProductName,
		SKU:          r.SKU,
		Category:     r.Category,
		SalesPerson:  r.SalesPerson,
		DevName:      r.DevName,
		AveragePrice: r.AveragePrice,
		SalesAmount:  r.SalesAmount,
		NetSales:     r.NetSales,
		RefundRate:   r.RefundRate,
	}
}

func addStock(p *model.InventoryPoint, r SourceRow) {
	p.FbaAvailable += r.FbaAvailable
	p.FbaInbound += r.FbaInbound
	p.FbaSellable += r.FbaSellable
	p.FbaUnsellable += r.FbaUnsellable
	p.InboundShipped += r.InboundShipped
}

func addSales(p *model.InventoryPoint, r SourceRow) {
	p.Sales7Days += r.Sales7Days
	p.TotalSales += r.TotalSales
	p.AverageSales += r.AverageSales
	p.OrderCount += r.OrderCount
	p.PromotionalOrders += r.PromotionalOrders
}

func addAds(p *model.InventoryPoint, r SourceRow) {
	p.AdImpressions += r.AdImpressions
	p.AdClicks += r.AdClicks
	p.AdSpend += r.AdSpend
	p.AdOrderCount += r.AdOrderCount
	p.AdSales += r.AdSales
}

// ApplyAdMetrics recomputes every rate from the summed bases.
func ApplyAdMetrics(p *model.InventoryPoint) {
	p.AdCTR = safeDiv(float64(p.AdClicks), float64(p.AdImpressions))
	p.AdCVR = safeDiv(float64(p.AdOrderCount), float64(p.AdClicks))
	p.AdCPC = safeDiv(p.AdSpend, float64(p.AdClicks))
	p.AdROAS = safeDiv(p.AdSales, p.AdSpend)
	p.DailySalesAmount = roundMoney(p.AverageSales * ExtractNumeric(p.AveragePrice))
	p.ACOAS = safeDiv(p.AdSpend, p.DailySalesAmount*7)
}

// ApplyHealth derives total inventory, turnover and the health flags.
func ApplyHealth(p *model.InventoryPoint) {
	p.TotalInventory = p.FbaAvailable + p.FbaInbound + p.LocalAvailable

	switch {
	case p.AverageSales > 0:
		p.TurnoverDays = float64(p.TotalInventory) / p.AverageSales
	case p.TotalInventory > 0:
		p.TurnoverDays = TurnoverCap
	default:
		p.TurnoverDays = 0
	}

	p.IsTurnoverExceeded = p.TurnoverDays > TurnoverExceededDays || p.TurnoverDays == TurnoverCap
	p.IsLowInventory = p.TurnoverDays > 0 && p.TurnoverDays < LowInventoryDays
	p.IsOutOfStock = p.FbaAvailable <= 0
	p.IsZeroSales = p.Sales7Days == 0
	p.IsEffectivePoint = p.DailySalesAmount >= EffectiveDailySales
}
