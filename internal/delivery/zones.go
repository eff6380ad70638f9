package delivery

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bazaarhq/bazaar-backend/pkg/db/models"
)

//go:embed default_zones.json
var defaultZonesJSON []byte

type defaultZoneRow struct {
	City  string   `json:"city"`
	Zone  string   `json:"zone"`
	Areas []string `json:"areas"`
}

// defaultZones expands the embedded zone table into zones for one company.
// Rows sharing a city and zone name are merged; duplicate areas are dropped.
func defaultZones(companyID uuid.UUID, price decimal.Decimal) ([]models.DeliveryZone, error) {
	var rows []defaultZoneRow
	if err := json.Unmarshal(defaultZonesJSON, &rows); err != nil {
		return nil, fmt.Errorf("decode default zones: %w", err)
	}

	type key struct{ city, zone string }
	order := []key{}
	areas := map[key][]string{}
	seen := map[key]map[string]bool{}
	for _, row := range rows {
		k := key{city: row.City, zone: row.Zone}
		if _, ok := areas[k]; !ok {
			order = append(order, k)
			areas[k] = []string{}
			seen[k] = map[string]bool{}
		}
		for _, area := range row.Areas {
			if seen[k][area] {
				continue
			}
			seen[k][area] = true
			areas[k] = append(areas[k], area)
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].city != order[j].city {
			return order[i].city < order[j].city
		}
		return order[i].zone < order[j].zone
	})

	zones := make([]models.DeliveryZone, 0, len(order))
	for _, k := range order {
		zones = append(zones, models.DeliveryZone{
			CompanyID:     companyID,
			Name:          k.zone,
			City:          k.city,
			Areas:         areas[k],
			DeliveryPrice: price,
		})
	}
	return zones, nil
}

// copyZones clones another company's zones, prices included.
func copyZones(companyID uuid.UUID, source []models.DeliveryZone) []models.DeliveryZone {
	zones := make([]models.DeliveryZone, 0, len(source))
	for _, z := range source {
		areas := make([]string, len(z.Areas))
		copy(areas, z.Areas)
		zones = append(zones, models.DeliveryZone{
			CompanyID:     companyID,
			Name:          z.Name,
			City:          z.City,
			Areas:         areas,
			DeliveryPrice: z.DeliveryPrice,
		})
	}
	return zones
}
