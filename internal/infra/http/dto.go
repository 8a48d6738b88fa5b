package http

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Spok95/supply-requests/internal/domain/incidents"
	"github.com/Spok95/supply-requests/internal/domain/materials"
	"github.com/Spok95/supply-requests/internal/domain/requests"
)

type requestDTO struct {
	ID                int64           `json:"id"`
	OfficeID          int64           `json:"office_id"`
	MaterialID        int64           `json:"material_id"`
	QuantityRequested int64           `json:"quantity_requested"`
	QuantityDelivered int64           `json:"quantity_delivered"`
	State             string          `json:"state"`
	ApproverID        string          `json:"approver_id,omitempty"`
	ApprovedAt        *time.Time      `json:"approved_at,omitempty"`
	PercentageOffice  decimal.Decimal `json:"percentage_office"`
	TotalValue        decimal.Decimal `json:"total_value"`
	OfficeValue       decimal.Decimal `json:"office_value"`
	HeadquartersValue decimal.Decimal `json:"headquarters_value"`
	Requester         string          `json:"requester"`
	Observation       string          `json:"observation,omitempty"`
	HasIncident       bool            `json:"has_incident"`
	LastDeliveryAt    *time.Time      `json:"last_delivery_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

func toRequestDTO(r *requests.Request) requestDTO {
	return requestDTO{
		ID:                r.ID,
		OfficeID:          r.OfficeID,
		MaterialID:        r.MaterialID,
		QuantityRequested: r.QuantityRequested,
		QuantityDelivered: r.QuantityDelivered,
		State:             string(r.State),
		ApproverID:        r.ApproverID,
		ApprovedAt:        r.ApprovedAt,
		PercentageOffice:  r.PercentageOffice,
		TotalValue:        r.TotalValue,
		OfficeValue:       r.OfficeValue,
		HeadquartersValue: r.HeadquartersValue,
		Requester:         r.Requester,
		Observation:       r.Observation,
		HasIncident:       r.HasIncident,
		LastDeliveryAt:    r.LastDeliveryAt,
		CreatedAt:         r.CreatedAt,
	}
}

type returnDTO struct {
	ID               int64     `json:"id"`
	RequestID        int64     `json:"request_id"`
	MaterialID       int64     `json:"material_id"`
	QuantityReturned int64     `json:"quantity_returned"`
	User             string    `json:"user"`
	Observation      string    `json:"observation,omitempty"`
	Condition        string    `json:"condition"`
	CreatedAt        time.Time `json:"created_at"`
}

func toReturnDTO(r requests.Return) returnDTO {
	return returnDTO{
		ID:               r.ID,
		RequestID:        r.RequestID,
		MaterialID:       r.MaterialID,
		QuantityReturned: r.QuantityReturned,
		User:             r.User,
		Observation:      r.Observation,
		Condition:        string(r.Condition),
		CreatedAt:        r.CreatedAt,
	}
}

type deliveryDTO struct {
	ID        int64     `json:"id"`
	Quantity  int64     `json:"quantity"`
	User      string    `json:"user"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type returnInfoDTO struct {
	RequestID         int64  `json:"request_id"`
	State             string `json:"state"`
	QuantityRequested int64  `json:"quantity_requested"`
	QuantityDelivered int64  `json:"quantity_delivered"`
	AlreadyReturned   int64  `json:"already_returned"`
	Returnable        int64  `json:"returnable"`
	CanReturn         bool   `json:"can_return"`
	Reason            string `json:"reason,omitempty"`
}

type incidentDTO struct {
	ID                int64      `json:"id"`
	RequestID         int64      `json:"request_id"`
	MaterialID        int64      `json:"material_id"`
	OfficeID          int64      `json:"office_id"`
	Type              string     `json:"type"`
	Description       string     `json:"description"`
	AffectedQuantity  int64      `json:"affected_quantity"`
	CorrectedQuantity int64      `json:"corrected_quantity"`
	State             string     `json:"state"`
	Reporter          string     `json:"reporter"`
	Resolver          string     `json:"resolver,omitempty"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`
	ResolutionComment string     `json:"resolution_comment,omitempty"`
	EvidencePath      string     `json:"evidence_path,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

func toIncidentDTO(i *incidents.Incident) incidentDTO {
	return incidentDTO{
		ID:                i.ID,
		RequestID:         i.RequestID,
		MaterialID:        i.MaterialID,
		OfficeID:          i.OfficeID,
		Type:              string(i.Type),
		Description:       i.Description,
		AffectedQuantity:  i.AffectedQuantity,
		CorrectedQuantity: i.CorrectedQuantity,
		State:             string(i.State),
		Reporter:          i.Reporter,
		Resolver:          i.Resolver,
		ResolvedAt:        i.ResolvedAt,
		ResolutionComment: i.ResolutionComment,
		EvidencePath:      i.EvidencePath,
		CreatedAt:         i.CreatedAt,
	}
}

func toIncidentDTOs(list []incidents.Incident) []incidentDTO {
	out := make([]incidentDTO, 0, len(list))
	for i := range list {
		out = append(out, toIncidentDTO(&list[i]))
	}
	return out
}

type stockDTO struct {
	MaterialID        int64  `json:"material_id"`
	Name              string `json:"name"`
	OfficeID          int64  `json:"office_id"`
	QuantityAvailable int64  `json:"quantity_available"`
	MinimumQuantity   int64  `json:"minimum_quantity"`
	Low               bool   `json:"low"`
}

func toStockDTO(l materials.StockLevel, margin int64) stockDTO {
	return stockDTO{
		MaterialID:        l.MaterialID,
		Name:              l.Name,
		OfficeID:          l.OfficeID,
		QuantityAvailable: l.QuantityAvailable,
		MinimumQuantity:   l.MinimumQuantity,
		Low:               l.Low(margin),
	}
}

type movementDTO struct {
	ID         int64     `json:"id"`
	Delta      int64     `json:"delta"`
	Kind       string    `json:"kind"`
	RequestID  int64     `json:"request_id,omitempty"`
	IncidentID int64     `json:"incident_id,omitempty"`
	Actor      string    `json:"actor,omitempty"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type statisticsDTO struct {
	MaterialID         int64 `json:"material_id"`
	Total              int64 `json:"total"`
	Pending            int64 `json:"pending"`
	Approved           int64 `json:"approved"`
	PartiallyDelivered int64 `json:"partially_delivered"`
	Rejected           int64 `json:"rejected"`
	Completed          int64 `json:"completed"`
	WithIncident       int64 `json:"with_incident"`
	TotalDelivered     int64 `json:"total_delivered"`
	TotalReturned      int64 `json:"total_returned"`
}

type incidentStatsDTO struct {
	Total    int64 `json:"total"`
	Pending  int64 `json:"pending"`
	Resolved int64 `json:"resolved"`
	Accepted int64 `json:"accepted"`
	Rejected int64 `json:"rejected"`
}
