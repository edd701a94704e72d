package services

import (
	"fmt"
	"sort"
	"strings"

	"housing-notifier/models"
	"housing-notifier/utils"
)

// SummaryService computes and prints a report over one cycle's admitted listings.
type SummaryService struct {
	logger *utils.Logger
}

func NewSummaryService(logger *utils.Logger) *SummaryService {
	return &SummaryService{logger: logger}
}

func (s *SummaryService) Generate(listings []*models.Listing) *models.PollReport {
	report := &models.PollReport{
		ByNeighborhood: make(map[string]int),
	}

	if len(listings) == 0 {
		return report
	}

	report.TotalAdmitted = len(listings)
	report.MinPrice = listings[0].Price
	report.MaxPrice = listings[0].Price
	report.Cheapest = listings[0]
	report.NewestPostedAt = listings[0].PostedAt
	report.OldestPostedAt = listings[0].PostedAt

	var total int
	for _, l := range listings {
		total += l.Price
		if l.Price < report.MinPrice {
			report.MinPrice = l.Price
			report.Cheapest = l
		}
		if l.Price > report.MaxPrice {
			report.MaxPrice = l.Price
		}
		if l.PostedAt.After(report.NewestPostedAt) {
			report.NewestPostedAt = l.PostedAt
		}
		if l.PostedAt.Before(report.OldestPostedAt) {
			report.OldestPostedAt = l.PostedAt
		}
		if l.Neighborhood != "" {
			report.ByNeighborhood[l.Neighborhood]++
		}
	}
	report.AveragePrice = round2(float64(total) / float64(len(listings)))

	return report
}

func (s *SummaryService) Print(userName string, r *models.PollReport) {
	thin := strings.Repeat("─", 54)

	fmt.Printf("\n  New listings for %s\n", userName)
	fmt.Printf("  %s\n", thin)

	if r.TotalAdmitted == 0 {
		fmt.Printf("  No new listings this cycle\n\n")
		return
	}

	fmt.Printf("  Admitted      : %d\n", r.TotalAdmitted)
	fmt.Printf("  Price range   : $%d – $%d (avg $%.2f/mo)\n", r.MinPrice, r.MaxPrice, r.AveragePrice)
	if r.Cheapest != nil {
		fmt.Printf("  Cheapest      : %s ($%d)\n", truncate(r.Cheapest.Title, 40), r.Cheapest.Price)
	}
	fmt.Printf("  Posted between: %s and %s\n",
		r.OldestPostedAt.Format("2006-01-02 15:04"),
		r.NewestPostedAt.Format("2006-01-02 15:04"))

	if len(r.ByNeighborhood) > 0 {
		type hoodCount struct {
			hood  string
			count int
		}
		var hoods []hoodCount
		for hood, cnt := range r.ByNeighborhood {
			hoods = append(hoods, hoodCount{hood, cnt})
		}
		sort.Slice(hoods, func(i, j int) bool {
			return hoods[i].count > hoods[j].count
		})
		fmt.Printf("  %s\n", thin)
		for _, hc := range hoods {
			bar := strings.Repeat("█", hc.count)
			fmt.Printf("  %-30s %s (%d)\n", truncate(hc.hood, 28), bar, hc.count)
		}
	}
	fmt.Println()
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
