package engine

import (
	"fmt"

	"agentsim/internal/agent/models"
)

// ItemPayload asks the responsible agent to evaluate an item.
type ItemPayload struct {
	Item models.Item
}

// ItemRef re-evaluates an item the scenario already introduced.
type ItemRef struct {
	ItemID string
}

// PriceUpdate moves the price of a known product or investment, then
// re-evaluates it.
type PriceUpdate struct {
	ItemID string
	Price  float64
}

// Notice is a host message recorded in the action log without a decision.
type Notice struct {
	Message string
}

// decodePayload accepts the typed payloads above and the untyped maps scenario
// files produce: {item_id, price?} or {message}.
func decodePayload(payload any) (any, error) {
	switch p := payload.(type) {
	case ItemPayload:
		if p.Item == nil {
			return nil, fmt.Errorf("item payload without an item: %w", ErrUnexpectedPayload)
		}
		return p, nil
	case ItemRef, PriceUpdate, Notice:
		return p, nil
	case map[string]any:
		return decodeMap(p)
	case nil:
		return nil, fmt.Errorf("missing payload: %w", ErrUnexpectedPayload)
	}
	return nil, fmt.Errorf("payload of type %T: %w", payload, ErrUnexpectedPayload)
}

func decodeMap(m map[string]any) (any, error) {
	if raw, ok := m["item_id"]; ok {
		id, ok := raw.(string)
		if !ok || id == "" {
			return nil, fmt.Errorf("item_id must be a non-empty string: %w", ErrUnexpectedPayload)
		}
		rawPrice, hasPrice := m["price"]
		if !hasPrice {
			return ItemRef{ItemID: id}, nil
		}
		price, ok := toFloat(rawPrice)
		if !ok || price < 0 {
			return nil, fmt.Errorf("price must be a non-negative number, got %v: %w", rawPrice, ErrUnexpectedPayload)
		}
		return PriceUpdate{ItemID: id, Price: price}, nil
	}
	if msg, ok := m["message"].(string); ok {
		return Notice{Message: msg}, nil
	}
	return nil, fmt.Errorf("payload needs item_id or message: %w", ErrUnexpectedPayload)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// reprice returns item with the new price applied. Products keep their first
// list price as the original; investments roll the current price into the
// previous one.
func reprice(item models.Item, price float64) (models.Item, error) {
	switch it := item.(type) {
	case models.Product:
		if it.OriginalPrice == 0 {
			it.OriginalPrice = it.Price
		}
		it.Price = price
		return it, nil
	case models.Investment:
		it.PreviousPrice = it.CurrentPrice
		it.CurrentPrice = price
		return it, nil
	}
	return nil, fmt.Errorf("%T %s has no market price: %w", item, item.ItemID(), ErrUnexpectedPayload)
}
