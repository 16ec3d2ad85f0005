package server

import (
	"strings"
	"time"

	"github.com/tournevent/sendparcel/pkg/parcel"
)

// createShipmentRequest is the JSON body of POST /shipments.
type createShipmentRequest struct {
	Provider string         `json:"provider"`
	Sender   addressJSON    `json:"sender"`
	Receiver addressJSON    `json:"receiver"`
	Parcels  []parcelJSON   `json:"parcels"`
	OrderRef string         `json:"order_ref,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
}

type addressJSON struct {
	Name        string `json:"name"`
	Company     string `json:"company,omitempty"`
	Line1       string `json:"line1"`
	Line2       string `json:"line2,omitempty"`
	City        string `json:"city"`
	State       string `json:"state,omitempty"`
	PostalCode  string `json:"postal_code"`
	CountryCode string `json:"country_code"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
}

func (a addressJSON) toParcel() parcel.AddressInfo {
	return parcel.AddressInfo{
		Name:        a.Name,
		Company:     a.Company,
		Line1:       a.Line1,
		Line2:       a.Line2,
		City:        a.City,
		State:       a.State,
		PostalCode:  a.PostalCode,
		CountryCode: a.CountryCode,
		Phone:       a.Phone,
		Email:       a.Email,
	}
}

type parcelJSON struct {
	WeightKG float64 `json:"weight_kg"`
	LengthCM float64 `json:"length_cm"`
	WidthCM  float64 `json:"width_cm"`
	HeightCM float64 `json:"height_cm"`
}

func toParcels(in []parcelJSON) []parcel.ParcelInfo {
	out := make([]parcel.ParcelInfo, 0, len(in))
	for _, p := range in {
		out = append(out, parcel.ParcelInfo{
			WeightKG: p.WeightKG,
			LengthCM: p.LengthCM,
			WidthCM:  p.WidthCM,
			HeightCM: p.HeightCM,
		})
	}
	return out
}

type providerChoice struct {
	Slug        string `json:"slug"`
	DisplayName string `json:"display_name"`
}

// shipmentJSON is the wire representation of a shipment.
type shipmentJSON struct {
	ID             string    `json:"id"`
	Status         string    `json:"status"`
	Provider       string    `json:"provider"`
	ExternalID     string    `json:"external_id,omitempty"`
	TrackingNumber string    `json:"tracking_number,omitempty"`
	LabelURL       string    `json:"label_url,omitempty"`
	OrderRef       string    `json:"order_ref,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func shipmentToJSON(s *parcel.Shipment) shipmentJSON {
	return shipmentJSON{
		ID:             s.ID,
		Status:         string(s.Status),
		Provider:       s.Provider,
		ExternalID:     s.ExternalID,
		TrackingNumber: s.TrackingNumber,
		LabelURL:       s.LabelURL,
		OrderRef:       s.OrderRef,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

// canonicalHeader lowercases header names so providers can match them
// without caring about transport casing.
func canonicalHeader(name string) string {
	return strings.ToLower(name)
}
