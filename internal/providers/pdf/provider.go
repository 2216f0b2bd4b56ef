package pdf

import (
	"context"
	"io"

	"go.uber.org/fx"
)

// Provider renders printable documents for submitted receipts.
type Provider interface {
	GenerateReceipt(ctx context.Context, data ReceiptData) (io.Reader, error)
}

type PDFProvider struct{}

func NewProvider() *PDFProvider {
	return &PDFProvider{}
}

var Module = fx.Module("providers.pdf",
	fx.Provide(
		NewProvider,
		func(p *PDFProvider) Provider { return p },
	),
)
