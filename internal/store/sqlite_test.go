package store

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barbarosson/advisory/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "advisory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestThreadLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	thread := &domain.Thread{
		ThreadID:  "t1",
		TenantID:  "tenant-a",
		AgentID:   "accounting",
		Title:     "Amortisman oranlari",
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateThread(ctx, thread))

	t.Run("get scoped to tenant", func(t *testing.T) {
		got, err := s.GetThread(ctx, "tenant-a", "t1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Amortisman oranlari", got.Title)

		other, err := s.GetThread(ctx, "tenant-b", "t1")
		require.NoError(t, err)
		assert.Nil(t, other)
	})

	t.Run("touch is monotonic", func(t *testing.T) {
		later := now.Add(time.Minute)
		require.NoError(t, s.TouchThread(ctx, "tenant-a", "t1", later))

		// An older timestamp must not win over a newer one.
		require.NoError(t, s.TouchThread(ctx, "tenant-a", "t1", now))

		got, err := s.GetThread(ctx, "tenant-a", "t1")
		require.NoError(t, err)
		assert.Equal(t, later.Unix(), got.UpdatedAt.Unix())
	})

	t.Run("list most recent first", func(t *testing.T) {
		second := &domain.Thread{
			ThreadID:  "t2",
			TenantID:  "tenant-a",
			AgentID:   "accounting",
			Title:     "KDV istisnalari",
			CreatedAt: now.Add(2 * time.Hour),
			UpdatedAt: now.Add(2 * time.Hour),
		}
		require.NoError(t, s.CreateThread(ctx, second))

		threads, err := s.ListThreads(ctx, "tenant-a", "accounting", 10)
		require.NoError(t, err)
		require.Len(t, threads, 2)
		assert.Equal(t, "t2", threads[0].ThreadID)
	})
}

func TestRecentMessagesWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	thread := &domain.Thread{ThreadID: "t1", TenantID: "tenant-a", AgentID: "accounting", Title: "x", CreatedAt: base, UpdatedAt: base}
	require.NoError(t, s.CreateThread(ctx, thread))

	for i := 0; i < 25; i++ {
		msg := &domain.Message{
			MessageID: fmt.Sprintf("m%02d", i),
			ThreadID:  "t1",
			TenantID:  "tenant-a",
			Role:      domain.RoleUser,
			Content:   fmt.Sprintf("message %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, s.CreateMessage(ctx, msg))
	}

	messages, err := s.GetRecentMessages(ctx, "tenant-a", "t1", 20)
	require.NoError(t, err)
	require.Len(t, messages, 20)

	// Newest 20 in ascending order: m05 .. m24.
	assert.Equal(t, "m05", messages[0].MessageID)
	assert.Equal(t, "m24", messages[19].MessageID)
	for i := 1; i < len(messages); i++ {
		assert.False(t, messages[i].CreatedAt.Before(messages[i-1].CreatedAt))
	}
}

func TestMessageMetadataRoundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, s.CreateThread(ctx, &domain.Thread{ThreadID: "t1", TenantID: "tenant-a", AgentID: "cfo", Title: "x", CreatedAt: now, UpdatedAt: now}))

	metadata, _ := json.Marshal(domain.MessageMetadata{ResponseTimeMs: 1234, ToolRounds: 2})
	msg := &domain.Message{
		MessageID: "m1",
		ThreadID:  "t1",
		TenantID:  "tenant-a",
		Role:      domain.RoleAssistant,
		Content:   "answer",
		CreatedAt: now,
		Metadata:  metadata,
	}
	require.NoError(t, s.CreateMessage(ctx, msg))

	got, err := s.GetMessage(ctx, "tenant-a", "m1")
	require.NoError(t, err)
	require.NotNil(t, got)

	var md domain.MessageMetadata
	require.NoError(t, json.Unmarshal(got.Metadata, &md))
	assert.Equal(t, int64(1234), md.ResponseTimeMs)
	assert.Equal(t, 2, md.ToolRounds)

	other, err := s.GetMessage(ctx, "tenant-b", "m1")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestFeedback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, s.CreateThread(ctx, &domain.Thread{ThreadID: "t1", TenantID: "tenant-a", AgentID: "accounting", Title: "x", CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, s.CreateMessage(ctx, &domain.Message{MessageID: "m1", ThreadID: "t1", TenantID: "tenant-a", Role: domain.RoleAssistant, Content: "a", CreatedAt: now}))

	fb := &domain.Feedback{
		FeedbackID:    "f1",
		MessageID:     "m1",
		TenantID:      "tenant-a",
		SolvedProblem: "yes",
		IsAccurate:    "partially",
		IsClear:       "clear",
		Comment:       "iyi",
		CreatedAt:     now,
	}
	require.NoError(t, s.CreateFeedback(ctx, fb))

	list, err := s.ListFeedback(ctx, "tenant-a", "m1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "partially", list[0].IsAccurate)
}

func seedKBDocuments(t *testing.T, s *SQLiteStore) {
	t.Helper()
	ctx := context.Background()

	docs := []domain.KBDocument{
		{
			ID:                  "VUK_M257",
			Title:               "Vergi Usul Kanunu Madde 257",
			SourceLawCode:       "213",
			ArticleNumber:       "257",
			ArticleTitle:        "Defter ve belge ibrazi",
			Summary:             "Defter ve belgelerin ibraz zorunlulugu",
			Status:              domain.KBStatusActive,
			ApplicableStandards: []string{"MSUGT", "TMS/TFRS"},
			RelatedArticleIDs:   []string{"VUK_M256"},
		},
		{
			ID:                  "VUK_M256",
			Title:               "Vergi Usul Kanunu Madde 256",
			SourceLawCode:       "213",
			ArticleNumber:       "256",
			Summary:             "Defter tutma yukumlulugu",
			Status:              domain.KBStatusActive,
			ApplicableStandards: []string{"MSUGT"},
		},
		{
			ID:            "TTK_M64",
			Title:         "Turk Ticaret Kanunu Madde 64",
			SourceLawCode: "6102",
			Summary:       "Defter tutma yukumlulugu TTK",
			Status:        domain.KBStatusObsolete,
		},
	}
	for i := range docs {
		require.NoError(t, s.CreateKBDocument(ctx, &docs[i]))
	}
}

func TestSearchKBDocuments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedKBDocuments(t, s)

	t.Run("defaults to active documents", func(t *testing.T) {
		docs, err := s.SearchKBDocuments(ctx, domain.KBSearchFilter{Query: "defter"})
		require.NoError(t, err)
		require.Len(t, docs, 2)
	})

	t.Run("status filter", func(t *testing.T) {
		docs, err := s.SearchKBDocuments(ctx, domain.KBSearchFilter{Query: "defter", Status: domain.KBStatusObsolete})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "TTK_M64", docs[0].ID)
	})

	t.Run("source law filter", func(t *testing.T) {
		docs, err := s.SearchKBDocuments(ctx, domain.KBSearchFilter{Query: "defter", SourceLaw: "213"})
		require.NoError(t, err)
		require.Len(t, docs, 2)
	})

	t.Run("standard filter", func(t *testing.T) {
		docs, err := s.SearchKBDocuments(ctx, domain.KBSearchFilter{Query: "defter", Standard: "TMS/TFRS"})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "VUK_M257", docs[0].ID)
	})

	t.Run("case insensitive", func(t *testing.T) {
		docs, err := s.SearchKBDocuments(ctx, domain.KBSearchFilter{Query: "DEFTER"})
		require.NoError(t, err)
		assert.Len(t, docs, 2)
	})
}

func TestRelatedDocumentsAndChangeHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedKBDocuments(t, s)

	related, err := s.GetRelatedKBDocuments(ctx, "VUK_M257")
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, "VUK_M256", related[0].ID)

	none, err := s.GetRelatedKBDocuments(ctx, "VUK_M256")
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, s.CreateKBChange(ctx, &domain.KBChange{ID: "c1", DocumentID: "VUK_M257", AmendmentDate: "2019-01-01", AmendmentText: "first"}))
	require.NoError(t, s.CreateKBChange(ctx, &domain.KBChange{ID: "c2", DocumentID: "VUK_M257", AmendmentDate: "2024-06-01", AmendmentText: "second"}))

	changes, err := s.GetKBChangeHistory(ctx, "VUK_M257")
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, "2024-06-01", changes[0].AmendmentDate)
}

func TestUpdateKBDocumentStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedKBDocuments(t, s)

	require.NoError(t, s.UpdateKBDocumentStatus(ctx, "VUK_M256", domain.KBStatusSuperseded))

	doc, err := s.GetKBDocument(ctx, "VUK_M256")
	require.NoError(t, err)
	assert.Equal(t, domain.KBStatusSuperseded, doc.Status)

	err = s.UpdateKBDocumentStatus(ctx, "missing", domain.KBStatusActive)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFinanceQueries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	invoices := []domain.Invoice{
		{ID: "i1", TenantID: "tenant-a", InvoiceNumber: "INV-001", CustomerName: "Acme Ltd", Status: "paid", TotalAmount: 1000, IssueDate: "2026-01-10", CreatedAt: now},
		{ID: "i2", TenantID: "tenant-a", InvoiceNumber: "INV-002", CustomerName: "Acme Ltd", Status: "draft", TotalAmount: 500, IssueDate: "2026-01-15", CreatedAt: now},
		{ID: "i3", TenantID: "tenant-a", InvoiceNumber: "INV-003", CustomerName: "Beta AS", Status: "cancelled", TotalAmount: 900, IssueDate: "2026-01-20", CreatedAt: now},
		{ID: "i4", TenantID: "tenant-b", InvoiceNumber: "INV-004", CustomerName: "Other", Status: "paid", TotalAmount: 7777, IssueDate: "2026-01-12", CreatedAt: now},
		{ID: "i5", TenantID: "tenant-a", InvoiceNumber: "INV-005", CustomerName: "Beta AS", Status: "sent", TotalAmount: 600, IssueDate: "2026-01-25", CreatedAt: now},
	}
	for i := range invoices {
		require.NoError(t, s.CreateInvoice(ctx, &invoices[i]))
	}
	require.NoError(t, s.CreateExpense(ctx, &domain.Expense{ID: "e1", TenantID: "tenant-a", Category: "rent", Amount: 400, Status: "paid", ExpenseDate: "2026-01-05"}))
	require.NoError(t, s.CreateExpense(ctx, &domain.Expense{ID: "e2", TenantID: "tenant-a", Category: "travel", Amount: 100, Status: "pending", ExpenseDate: "2026-02-01"}))

	t.Run("invoices by customer name", func(t *testing.T) {
		got, err := s.QueryInvoices(ctx, "tenant-a", domain.InvoiceFilter{CustomerName: "acme"})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("invoices tenant scoped", func(t *testing.T) {
		got, err := s.QueryInvoices(ctx, "tenant-a", domain.InvoiceFilter{})
		require.NoError(t, err)
		assert.Len(t, got, 4)
	})

	t.Run("invoices amount bounds", func(t *testing.T) {
		min := 600.0
		got, err := s.QueryInvoices(ctx, "tenant-a", domain.InvoiceFilter{MinAmount: &min})
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("financial summary splits draft from confirmed revenue", func(t *testing.T) {
		sum, err := s.FinancialSummary(ctx, "tenant-a", "2026-01-01", "2026-01-31")
		require.NoError(t, err)
		assert.Equal(t, 500.0, sum.DraftRevenue)
		assert.Equal(t, 1600.0, sum.ConfirmedRevenue)
		assert.Equal(t, 1000.0, sum.PaidRevenue)
		assert.Equal(t, 2100.0, sum.TotalRevenue)
		assert.Equal(t, 400.0, sum.TotalExpenses)
		assert.Equal(t, 1200.0, sum.Profit)
		assert.Equal(t, 3, sum.InvoiceCount)
		assert.Equal(t, 1, sum.ExpenseCount)
		assert.InDelta(t, 75.0, sum.ProfitMarginPercent, 0.01)
	})

	t.Run("drafts never inflate profit", func(t *testing.T) {
		require.NoError(t, s.CreateInvoice(ctx, &domain.Invoice{ID: "i6", TenantID: "tenant-c", InvoiceNumber: "INV-006", Status: "draft", TotalAmount: 1000, IssueDate: "2026-01-10", CreatedAt: now}))
		require.NoError(t, s.CreateInvoice(ctx, &domain.Invoice{ID: "i7", TenantID: "tenant-c", InvoiceNumber: "INV-007", Status: "paid", TotalAmount: 500, IssueDate: "2026-01-12", CreatedAt: now}))
		require.NoError(t, s.CreateExpense(ctx, &domain.Expense{ID: "e3", TenantID: "tenant-c", Category: "rent", Amount: 200, Status: "paid", ExpenseDate: "2026-01-15"}))

		sum, err := s.FinancialSummary(ctx, "tenant-c", "2026-01-01", "2026-01-31")
		require.NoError(t, err)
		assert.Equal(t, 1500.0, sum.TotalRevenue)
		assert.Equal(t, 300.0, sum.Profit)
		assert.InDelta(t, 60.0, sum.ProfitMarginPercent, 0.01)
	})

	t.Run("expenses date range", func(t *testing.T) {
		got, err := s.QueryExpenses(ctx, "tenant-a", domain.ExpenseFilter{StartDate: "2026-02-01"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "travel", got[0].Category)
	})
}

func TestProductLowStock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateProduct(ctx, &domain.Product{ID: "p1", TenantID: "tenant-a", Name: "Kablo", Quantity: 2, MinStockLevel: 5, Price: 10}))
	require.NoError(t, s.CreateProduct(ctx, &domain.Product{ID: "p2", TenantID: "tenant-a", Name: "Monitor", Quantity: 50, MinStockLevel: 5, Price: 3000}))

	got, err := s.QueryProducts(ctx, "tenant-a", domain.ProductFilter{LowStock: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Kablo", got[0].Name)
}
