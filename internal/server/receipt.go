package server

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/tally/internal/money"
	"github.com/smallbiznis/tally/internal/providers/pdf"
	receiptdomain "github.com/smallbiznis/tally/internal/receipt/domain"
	"github.com/smallbiznis/tally/pkg/db/pagination"
)

func (s *Server) ComputeReceipt(c *gin.Context) {
	var req receiptdomain.ComputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.receiptSvc.Compute(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SubmitReceipt(c *gin.Context) {
	var req receiptdomain.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.receiptSvc.Submit(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetReceipt(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.receiptSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListReceipts(c *gin.Context) {
	var query struct {
		pagination.Pagination
		CustomerID string `form:"customer_id"`
		Status     string `form:"status"`
		From       string `form:"from"`
		To         string `form:"to"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	from, err := parseOptionalTime(query.From)
	if err != nil {
		AbortWithError(c, newValidationError("from", "invalid_from", "invalid from"))
		return
	}
	to, err := parseOptionalTime(query.To)
	if err != nil {
		AbortWithError(c, newValidationError("to", "invalid_to", "invalid to"))
		return
	}

	resp, err := s.receiptSvc.List(c.Request.Context(), receiptdomain.ListRequest{
		CustomerID: strings.TrimSpace(query.CustomerID),
		Status:     strings.TrimSpace(query.Status),
		From:       from,
		To:         to,
		PageToken:  query.PageToken,
		PageSize:   query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Data, "page_info": resp.PageInfo})
}

func (s *Server) GetReceiptPDF(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.receiptSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	reader, err := s.pdfSvc.GenerateReceipt(c.Request.Context(), receiptPDFData(resp))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	doc, err := io.ReadAll(reader)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `inline; filename="receipt-`+resp.ID+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", doc)
}

func receiptPDFData(resp *receiptdomain.Response) pdf.ReceiptData {
	data := pdf.ReceiptData{
		ReceiptNumber: resp.ID,
		BranchName:    resp.BranchID,
		CashierName:   resp.CashierID,
		Subtotal:      money.New(resp.SubtotalAmount, resp.Currency).String(),
		Tax:           money.New(resp.TaxAmount, resp.Currency).String(),
		Total:         money.New(resp.GrandTotalAmount, resp.Currency).String(),
		PointsUsed:    resp.LoyaltyPointsUsed,
		PointsEarned:  resp.LoyaltyPointsEarned,
	}
	if resp.SubmittedAt != nil {
		data.IssuedAt = resp.SubmittedAt.Format(time.RFC3339)
	}
	if resp.OrderDiscountAmount > 0 {
		data.OrderDiscount = money.New(resp.OrderDiscountAmount, resp.Currency).String()
	}
	if resp.LoyaltyDiscountAmount > 0 {
		data.LoyaltyDiscount = money.New(resp.LoyaltyDiscountAmount, resp.Currency).String()
	}
	for _, line := range resp.Lines {
		data.Items = append(data.Items, pdf.ReceiptItem{
			Description: line.Description,
			Qty:         line.Quantity,
			UnitPrice:   money.New(line.UnitPriceAmount, resp.Currency).String(),
			Amount:      money.New(line.NetAmount, resp.Currency).String(),
			Returned:    line.Returned,
		})
	}
	for _, split := range resp.Payments {
		data.Payments = append(data.Payments, pdf.PaymentLine{
			Method: string(split.Method),
			Amount: money.New(split.Amount, resp.Currency).String(),
		})
	}
	return data
}

func parseOptionalTime(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
