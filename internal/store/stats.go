package store

import (
	"time"

	"guardian-api/internal/models"
)

// Stats aggregates completed-purchase figures for the admin endpoints.
type Stats struct {
	TotalPurchases  int64            `json:"total_purchases"`
	TotalRevenue    float64          `json:"total_revenue"`
	ProductsSold    map[string]int64 `json:"products_sold"`
	RecentPurchases int64            `json:"recent_purchases"`
}

// PurchaseStats computes completed-purchase count, revenue sum, a per-product
// breakdown and the count over the last seven days. Read-only.
func (s *Store) PurchaseStats() (*Stats, error) {
	stats := &Stats{ProductsSold: make(map[string]int64)}

	completed := s.db.Model(&models.Purchase{}).
		Where("status = ?", models.StatusCompleted)

	if err := completed.Count(&stats.TotalPurchases).Error; err != nil {
		return nil, err
	}

	row := s.db.Model(&models.Purchase{}).
		Where("status = ?", models.StatusCompleted).
		Select("COALESCE(SUM(amount), 0)").
		Row()
	if err := row.Scan(&stats.TotalRevenue); err != nil {
		return nil, err
	}

	var perProduct []struct {
		ProductID string
		Count     int64
	}
	err := s.db.Model(&models.Purchase{}).
		Where("status = ?", models.StatusCompleted).
		Select("product_id, COUNT(*) as count").
		Group("product_id").
		Scan(&perProduct).Error
	if err != nil {
		return nil, err
	}
	for _, p := range perProduct {
		stats.ProductsSold[p.ProductID] = p.Count
	}

	weekAgo := time.Now().UTC().AddDate(0, 0, -7)
	err = s.db.Model(&models.Purchase{}).
		Where("status = ? AND created_at >= ?", models.StatusCompleted, weekAgo).
		Count(&stats.RecentPurchases).Error
	if err != nil {
		return nil, err
	}

	return stats, nil
}
