package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/raine/listlift/internal/model"
)

// schemaVersion is written into every blob envelope.
const schemaVersion = 1

var errIncompatibleVersion = errors.New("blob written by a newer schema version")

type envelope struct {
	Version int             `json:"version"`
	Data    json.RawMessage `json:"data"`
}

func encodeBlob(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Version: schemaVersion, Data: data})
}

// decodeBlob accepts both enveloped blobs and the bare arrays and objects
// written before the envelope existed.
func decodeBlob(raw []byte, v any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return errors.New("empty blob")
	}

	if trimmed[0] == '{' {
		var probe struct {
			Version *int            `json:"version"`
			Data    json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &probe); err != nil {
			return err
		}
		if probe.Version != nil && probe.Data != nil {
			if *probe.Version > schemaVersion {
				return fmt.Errorf("%w: %d", errIncompatibleVersion, *probe.Version)
			}
			return json.Unmarshal(probe.Data, v)
		}
	}

	return json.Unmarshal(trimmed, v)
}

// decodeItems reports assigned when an item lacked an id and was given a new
// one. The caller must persist the collection so the id survives a reload.
func decodeItems(raw []byte) (items []model.Item, assigned bool, err error) {
	if err := decodeBlob(raw, &items); err != nil {
		return nil, false, err
	}
	if items == nil {
		items = []model.Item{}
	}
	for i := range items {
		if normalizeItem(&items[i]) {
			assigned = true
		}
	}
	return items, assigned, nil
}

// decodeAccount reports assigned when the account lacked a user id.
func decodeAccount(raw []byte) (a model.Account, assigned bool, err error) {
	if err := decodeBlob(raw, &a); err != nil {
		return model.Account{}, false, err
	}
	// A JSON null decodes without error but is not an account
	if a.UserID == "" && a.Plan == "" {
		return model.Account{}, false, errors.New("account blob has no user or plan")
	}
	assigned = normalizeAccount(&a)
	return a, assigned, nil
}

// normalizeItem fills fields that older blobs may lack and reports whether a
// new id was assigned. Nil slices are kept as they were written.
func normalizeItem(it *model.Item) bool {
	assigned := it.ID == ""
	if assigned {
		it.ID = uuid.New().String()
	}
	if !it.Condition.Valid() {
		it.Condition = model.ConditionPreOwned
	}
	if !it.MarketplaceStatus.Ebay.Valid() {
		it.MarketplaceStatus.Ebay = model.StatusDraft
	}
	if !it.MarketplaceStatus.Etsy.Valid() {
		it.MarketplaceStatus.Etsy = model.StatusDraft
	}
	return assigned
}

func normalizeAccount(a *model.Account) bool {
	assigned := a.UserID == ""
	if assigned {
		a.UserID = uuid.New().String()
	}
	if !a.Plan.Valid() {
		a.Plan = model.PlanFree
	}
	if a.Quotas.ProcessedListingsLimit == 0 {
		a.Quotas.ProcessedListingsLimit = a.Plan.ListingLimit()
	}
	if a.Templates == nil {
		a.Templates = []model.Template{}
	}
	if a.PoliciesCache.ShippingPolicies == nil {
		a.PoliciesCache.ShippingPolicies = []model.Policy{}
	}
	if a.PoliciesCache.PaymentPolicies == nil {
		a.PoliciesCache.PaymentPolicies = []model.Policy{}
	}
	if a.PoliciesCache.ReturnPolicies == nil {
		a.PoliciesCache.ReturnPolicies = []model.Policy{}
	}
	return assigned
}
