// Package render turns withdrawal records into sealed payment-advice
// documents and keeps them in an artifact store.
package render

import (
	"bytes"
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"html/template"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/WossMusic/woss-royalties/internal/domain"
	"github.com/WossMusic/woss-royalties/internal/money"
)

//go:embed templates/payment_advice.html.tmpl
var templateFS embed.FS

const sealMarker = "\n<!-- payment-advice-seal:"

var ErrSealInvalid = errors.New("payment advice seal does not match document")

type artifactStore interface {
	Put(ctx context.Context, ref string, data []byte) error
	Get(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
}

type Renderer struct {
	store  artifactStore
	secret []byte
	tmpl   *template.Template
	now    func() time.Time
}

func NewRenderer(store artifactStore, sealSecret string) (*Renderer, error) {
	tmpl, err := template.New("payment_advice.html.tmpl").
		Funcs(template.FuncMap{"money": money.String, "date": formatDate}).
		ParseFS(templateFS, "templates/payment_advice.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("NewRenderer: %w", err)
	}
	return &Renderer{
		store:  store,
		secret: []byte(sealSecret),
		tmpl:   tmpl,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

type adviceView struct {
	Preview bool
	Record  *domain.WithdrawalRecord
	Issued  time.Time
}

type SealClaims struct {
	jwt.RegisteredClaims
	SettlementDocNumber string `json:"sdn"`
	VendorInvoiceNumber string `json:"vin"`
	ClosingPayable      string `json:"amt"`
	ContentSHA256       string `json:"sha"`
}

// Render produces the sealed advice for a persisted withdrawal and stores it.
// It returns the artifact reference and the stored size in bytes.
func (r *Renderer) Render(ctx context.Context, w *domain.WithdrawalRecord) (string, int64, error) {
	body, err := r.execute(adviceView{Record: w, Issued: r.now()})
	if err != nil {
		return "", 0, fmt.Errorf("Render: %w", err)
	}

	sealed, err := r.seal(w, body)
	if err != nil {
		return "", 0, fmt.Errorf("Render: %w", err)
	}

	ref := ArtifactRef(w)
	if err := r.store.Put(ctx, ref, sealed); err != nil {
		return "", 0, fmt.Errorf("Render: %w", err)
	}
	return ref, int64(len(sealed)), nil
}

// RenderPreview renders an unsealed, watermarked advice that is not stored.
func (r *Renderer) RenderPreview(_ context.Context, w *domain.WithdrawalRecord) ([]byte, error) {
	body, err := r.execute(adviceView{Preview: true, Record: w, Issued: r.now()})
	if err != nil {
		return nil, fmt.Errorf("RenderPreview: %w", err)
	}
	return body, nil
}

func (r *Renderer) Discard(ctx context.Context, ref string) error {
	if err := r.store.Delete(ctx, ref); err != nil {
		return fmt.Errorf("Discard: %w", err)
	}
	return nil
}

// Verify loads a stored advice and checks its seal against the content.
func (r *Renderer) Verify(ctx context.Context, ref string) (*SealClaims, error) {
	_, claims, err := r.Open(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("Verify: %w", err)
	}
	return claims, nil
}

// Open returns a stored advice only if its seal still matches the content.
func (r *Renderer) Open(ctx context.Context, ref string) ([]byte, *SealClaims, error) {
	data, err := r.store.Get(ctx, ref)
	if err != nil {
		return nil, nil, fmt.Errorf("Open: %w", err)
	}

	idx := bytes.LastIndex(data, []byte(sealMarker))
	if idx < 0 {
		return nil, nil, fmt.Errorf("Open: %w", ErrSealInvalid)
	}
	body := data[:idx]
	token := bytes.TrimSuffix(bytes.TrimSpace(data[idx+len(sealMarker):]), []byte("-->"))

	claims := &SealClaims{}
	_, err = jwt.ParseWithClaims(string(bytes.TrimSpace(token)), claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return r.secret, nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("Open: %w", err)
	}

	if claims.ContentSHA256 != digest(body) {
		return nil, nil, fmt.Errorf("Open: %w", ErrSealInvalid)
	}
	return data, claims, nil
}

func (r *Renderer) execute(v adviceView) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, v); err != nil {
		return nil, fmt.Errorf("execute template: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) seal(w *domain.WithdrawalRecord, body []byte) ([]byte, error) {
	claims := SealClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  w.UserID.String(),
			ID:       w.ID.String(),
			IssuedAt: jwt.NewNumericDate(r.now()),
		},
		SettlementDocNumber: w.SettlementDocNumber,
		VendorInvoiceNumber: w.VendorInvoiceNumber,
		ClosingPayable:      money.String(w.ClosingPayableAmount),
		ContentSHA256:       digest(body),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
	if err != nil {
		return nil, fmt.Errorf("seal: %w", err)
	}

	out := make([]byte, 0, len(body)+len(sealMarker)+len(token)+5)
	out = append(out, body...)
	out = append(out, sealMarker...)
	out = append(out, token...)
	out = append(out, " -->\n"...)
	return out, nil
}

func ArtifactRef(w *domain.WithdrawalRecord) string {
	return fmt.Sprintf("%s/%s.html", w.UserID, w.SettlementDocNumber)
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
