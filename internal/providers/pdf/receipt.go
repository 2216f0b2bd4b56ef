package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// ReceiptItem is one printable product row.
type ReceiptItem struct {
	Description string
	Qty         int64
	UnitPrice   string
	Amount      string
	Returned    bool
}

// ReceiptData carries everything the printable receipt shows. Amounts are
// preformatted display strings so the renderer stays layout-only.
type ReceiptData struct {
	ReceiptNumber string
	StoreName     string
	BranchName    string
	CashierName   string
	IssuedAt      string

	Items []ReceiptItem

	Subtotal        string
	OrderDiscount   string
	LoyaltyDiscount string
	Tax             string
	Total           string

	Payments []PaymentLine

	PointsUsed   int64
	PointsEarned int64
}

// PaymentLine is one printed tender split.
type PaymentLine struct {
	Method string
	Amount string
}

// GenerateReceipt renders the printable PDF for a submitted receipt.
func (p *PDFProvider) GenerateReceipt(ctx context.Context, data ReceiptData) (io.Reader, error) {
	_ = ctx

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(25,
		text.NewCol(8, p.storeNameOr(data.StoreName), props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, "Receipt "+data.ReceiptNumber, props.Text{
			Size:  10,
			Align: align.Right,
		}),
	)

	m.AddRow(18,
		col.New(6).Add(
			text.New("Branch: "+data.BranchName, props.Text{Top: 0, Size: 9}),
			text.New("Cashier: "+data.CashierName, props.Text{Top: 4, Size: 9}),
			text.New("Issued: "+data.IssuedAt, props.Text{Top: 8, Size: 9}),
		),
		col.New(6),
	)

	m.AddRow(8,
		text.NewCol(6, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, item := range data.Items {
		desc := item.Description
		if item.Returned {
			desc = desc + " (returned)"
		}
		m.AddRow(8,
			text.NewCol(6, desc, props.Text{Size: 9}),
			text.NewCol(2, fmt.Sprintf("%d", item.Qty), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.UnitPrice, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(8,
		col.New(8),
		text.NewCol(2, "Subtotal", props.Text{Size: 9}),
		text.NewCol(2, data.Subtotal, props.Text{Size: 9, Align: align.Right}),
	)
	if data.OrderDiscount != "" {
		m.AddRow(8,
			col.New(8),
			text.NewCol(2, "Discount", props.Text{Size: 9}),
			text.NewCol(2, "-"+data.OrderDiscount, props.Text{Size: 9, Align: align.Right}),
		)
	}
	if data.LoyaltyDiscount != "" {
		m.AddRow(8,
			col.New(8),
			text.NewCol(2, "Points", props.Text{Size: 9}),
			text.NewCol(2, "-"+data.LoyaltyDiscount, props.Text{Size: 9, Align: align.Right}),
		)
	}
	m.AddRow(8,
		col.New(8),
		text.NewCol(2, "Tax", props.Text{Size: 9}),
		text.NewCol(2, data.Tax, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Total", props.Text{Size: 10, Style: fontstyle.Bold}),
		text.NewCol(2, data.Total, props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}),
	)

	for _, pay := range data.Payments {
		m.AddRow(7,
			col.New(8),
			text.NewCol(2, pay.Method, props.Text{Size: 8}),
			text.NewCol(2, pay.Amount, props.Text{Size: 8, Align: align.Right}),
		)
	}

	if data.PointsUsed > 0 || data.PointsEarned > 0 {
		m.AddRow(12,
			text.NewCol(12,
				fmt.Sprintf("Points used: %d    Points earned: %d", data.PointsUsed, data.PointsEarned),
				props.Text{Size: 8, Top: 4},
			),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}

func (p *PDFProvider) storeNameOr(name string) string {
	if name == "" {
		return "Receipt"
	}
	return name
}
