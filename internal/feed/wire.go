package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"budgetboard/internal/core"
	"budgetboard/internal/remote"
)

// wireTransaction is one transaction as serialized by the API. Field names
// vary between endpoints, so both spellings are accepted.
type wireTransaction struct {
	ID              remote.FlexString `json:"id"`
	TransactionID   remote.FlexString `json:"transaction_id"`
	Amount          remote.FlexString `json:"amount"`
	TransactionType string            `json:"transaction_type"`
	Type            string            `json:"type"`
	Category        json.RawMessage   `json:"category"`
	CategoryName    string            `json:"category_name"`
	Date            string            `json:"date"`
	CreatedAt       string            `json:"created_at"`
	Description     string            `json:"description"`
	User            json.RawMessage   `json:"user"`
	Username        string            `json:"username"`
}

type wireUser struct {
	ID       remote.FlexString `json:"id"`
	UserID   remote.FlexString `json:"user_id"`
	Username string            `json:"username"`
	Role     string            `json:"role"`
}

type wireCategory struct {
	CategoryName string `json:"category_name"`
	Name         string `json:"name"`
}

type wirePage struct {
	Results []json.RawMessage `json:"results"`
	Next    *string           `json:"next"`
}

// DecodeTransactions parses a bare JSON array or a paginated
// {"results": [...], "next": "..."} object. A record that cannot be decoded is
// kept with an empty amount so aggregation reports it instead of dropping the
// whole page.
func DecodeTransactions(data []byte) (txs []core.Transaction, next string, err error) {
	items, next, err := decodeList(data)
	if err != nil {
		return nil, "", fmt.Errorf("decoding transactions: %w", err)
	}
	txs = make([]core.Transaction, 0, len(items))
	for i, raw := range items {
		var w wireTransaction
		if err := json.Unmarshal(raw, &w); err != nil {
			txs = append(txs, core.Transaction{ID: fmt.Sprintf("#%d", i)})
			continue
		}
		txs = append(txs, w.toCore(i))
	}
	return txs, next, nil
}

func decodeList(data []byte) ([]json.RawMessage, string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, "", nil
	}
	if data[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, "", err
		}
		return items, "", nil
	}
	var p wirePage
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, "", err
	}
	next := ""
	if p.Next != nil {
		next = *p.Next
	}
	return p.Results, next, nil
}

func (w wireTransaction) toCore(i int) core.Transaction {
	t := core.Transaction{
		ID:          firstNonEmpty(w.ID.String(), w.TransactionID.String(), fmt.Sprintf("#%d", i)),
		Amount:      core.RawAmount(w.Amount),
		Type:        core.ParseTransactionType(firstNonEmpty(w.TransactionType, w.Type)),
		Category:    firstNonEmpty(categoryLabel(w.Category), w.CategoryName),
		Description: w.Description,
		Owner:       w.Username,
	}
	if u, ok := decodeUser(w.User); ok {
		t.Owner = firstNonEmpty(u.Username, t.Owner)
		t.OwnerID = firstNonEmpty(u.UserID.String(), u.ID.String())
	}
	if d, err := core.ParseDate(firstNonEmpty(w.Date, w.CreatedAt)); err == nil {
		t.Date = d
	}
	return t
}

// categoryLabel accepts {"category_name": ...}, {"name": ...}, a bare string
// or null. Numeric foreign keys carry no label.
func categoryLabel(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '{':
		var c wireCategory
		if err := json.Unmarshal(raw, &c); err != nil {
			return ""
		}
		return strings.TrimSpace(firstNonEmpty(c.CategoryName, c.Name))
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	}
	return ""
}

func decodeUser(raw json.RawMessage) (wireUser, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return wireUser{}, false
	}
	var u wireUser
	if err := json.Unmarshal(raw, &u); err != nil {
		return wireUser{}, false
	}
	return u, true
}

// EncodeTransactions renders transactions in the wire format DecodeTransactions reads.
func EncodeTransactions(txs []core.Transaction) ([]byte, error) {
	out := make([]map[string]any, 0, len(txs))
	for _, t := range txs {
		rec := map[string]any{
			"id":               t.ID,
			"amount":           string(t.Amount),
			"transaction_type": string(t.Type),
			"description":      t.Description,
			"category":         nil,
			"user":             nil,
		}
		if strings.TrimSpace(t.Category) != "" {
			rec["category"] = map[string]string{"category_name": t.Category}
		}
		if t.Owner != "" || t.OwnerID != "" {
			rec["user"] = map[string]string{"username": t.Owner, "user_id": t.OwnerID}
		}
		if !t.Date.IsZero() {
			rec["date"] = t.Date.Format("2006-01-02")
		}
		out = append(out, rec)
	}
	return json.Marshal(out)
}

// DecodeMembers parses the family members list. Entries may be users or
// membership records wrapping a user.
func DecodeMembers(data []byte) ([]core.Member, error) {
	items, _, err := decodeList(data)
	if err != nil {
		return nil, fmt.Errorf("decoding members: %w", err)
	}
	out := make([]core.Member, 0, len(items))
	for _, raw := range items {
		var m struct {
			wireUser
			User json.RawMessage `json:"user"`
		}
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}
		u := m.wireUser
		if inner, ok := decodeUser(m.User); ok {
			u.Username = firstNonEmpty(inner.Username, u.Username)
			u.UserID = remote.FlexString(firstNonEmpty(inner.UserID.String(), inner.ID.String(), u.UserID.String()))
		}
		if u.Username == "" {
			continue
		}
		out = append(out, core.Member{
			ID:       firstNonEmpty(u.UserID.String(), u.ID.String()),
			Username: u.Username,
			Role:     u.Role,
		})
	}
	return out, nil
}

// DecodeProfile parses the signed-in user's profile.
func DecodeProfile(data []byte) (core.Profile, error) {
	var w struct {
		wireUser
		Email      string          `json:"email"`
		Family     json.RawMessage `json:"family"`
		FamilyName string          `json:"family_name"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return core.Profile{}, fmt.Errorf("decoding profile: %w", err)
	}
	p := core.Profile{
		ID:       firstNonEmpty(w.UserID.String(), w.ID.String()),
		Username: w.Username,
		Email:    w.Email,
		Role:     w.Role,
		Family:   w.FamilyName,
	}
	fam := bytes.TrimSpace(w.Family)
	if len(fam) > 0 && fam[0] == '{' {
		var f struct {
			ID   remote.FlexString `json:"id"`
			Name string            `json:"name"`
		}
		if err := json.Unmarshal(fam, &f); err == nil {
			p.FamilyID = f.ID.String()
			p.Family = firstNonEmpty(f.Name, p.Family)
		}
	} else if len(fam) > 0 {
		var id remote.FlexString
		if err := json.Unmarshal(fam, &id); err == nil {
			p.FamilyID = id.String()
		}
	}
	return p, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
