package ingest

// Shared fakes and spreadsheet fixture builders for the ingest tests.

import (
	"context"
	"fmt"
	"testing"

	"github.com/xuri/excelize/v2"

	"ifood-ingestion-service/internal/models"
	"ifood-ingestion-service/internal/storage"
	"ifood-ingestion-service/internal/store"
	"ifood-ingestion-service/pkg/logger"
)

func testLogger(t *testing.T) logger.Logger {
	t.Helper()
	cfg := logger.DefaultConfig()
	cfg.Level = logger.ErrorLevel
	log, err := logger.NewLogger(cfg)
	if err != nil {
		t.Fatalf("creating test logger: %v", err)
	}
	return log
}

type fakeFileStore struct {
	files      map[string]*models.ReceivedFile
	updates    []store.StatusUpdate
	failStatus models.FileStatus // fail updates targeting this status
}

func (f *fakeFileStore) GetReceivedFile(ctx context.Context, id string) (*models.ReceivedFile, error) {
	file, ok := f.files[id]
	if !ok {
		return nil, fmt.Errorf("received file %s not found", id)
	}
	copied := *file
	return &copied, nil
}

func (f *fakeFileStore) UpdateStatus(ctx context.Context, update store.StatusUpdate) error {
	if f.failStatus != "" && update.Status == f.failStatus {
		return fmt.Errorf("simulated status write failure")
	}
	f.updates = append(f.updates, update)
	return nil
}

func (f *fakeFileStore) lastUpdate(t *testing.T) store.StatusUpdate {
	t.Helper()
	if len(f.updates) == 0 {
		t.Fatal("no status updates recorded")
	}
	return f.updates[len(f.updates)-1]
}

type upsertCall struct {
	Table    string
	Conflict string
	Records  []store.Record
}

type fakeRowStore struct {
	calls       []upsertCall
	byKey       map[string]store.Record
	failAtBatch int // 1-based call index that fails; 0 never fails
}

func newFakeRowStore() *fakeRowStore {
	return &fakeRowStore{byKey: make(map[string]store.Record)}
}

func (f *fakeRowStore) UpsertBatch(ctx context.Context, table string, records []store.Record, conflictColumn string) error {
	if f.failAtBatch > 0 && len(f.calls)+1 == f.failAtBatch {
		return fmt.Errorf("simulated upsert failure")
	}
	f.calls = append(f.calls, upsertCall{Table: table, Conflict: conflictColumn, Records: records})
	for _, record := range records {
		key, _ := record[conflictColumn].(string)
		f.byKey[key] = record
	}
	return nil
}

func (f *fakeRowStore) totalRows() int {
	total := 0
	for _, call := range f.calls {
		total += len(call.Records)
	}
	return total
}

type kpiCall struct {
	AccountID string
	Dates     []string
}

type fakeKpiStore struct {
	triggers   []kpiCall
	upserts    []models.DailyKpi
	failRPC    bool
	failUpsert bool
}

func (f *fakeKpiStore) RecalculateDailyKpis(ctx context.Context, accountID string, dates []string) error {
	if f.failRPC {
		return fmt.Errorf("simulated recalculation failure")
	}
	f.triggers = append(f.triggers, kpiCall{AccountID: accountID, Dates: dates})
	return nil
}

func (f *fakeKpiStore) UpsertDailyKpis(ctx context.Context, kpis []models.DailyKpi) error {
	if f.failUpsert {
		return fmt.Errorf("simulated kpi upsert failure")
	}
	f.upserts = append(f.upserts, kpis...)
	return nil
}

type fakeBlobStore struct {
	objects map[string][]byte
}

func (f *fakeBlobStore) Download(ctx context.Context, bucket, path string) ([]byte, error) {
	data, ok := f.objects[bucket+"/"+path]
	if !ok {
		return nil, fmt.Errorf("object %s/%s not found", bucket, path)
	}
	return data, nil
}

func (f *fakeBlobStore) Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error {
	f.objects[bucket+"/"+path] = data
	return nil
}

var _ storage.BlobStore = (*fakeBlobStore)(nil)

// buildWorkbook creates an in-memory xlsx with the given sheets in order.
func buildWorkbook(t *testing.T, order []string, sheets map[string][][]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, name := range order {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				t.Fatalf("renaming first sheet: %v", err)
			}
		} else {
			if _, err := f.NewSheet(name); err != nil {
				t.Fatalf("adding sheet %s: %v", name, err)
			}
		}
		for rowIdx, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, rowIdx+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			if err := f.SetSheetRow(name, cell, &row); err != nil {
				t.Fatalf("writing row %d: %v", rowIdx, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("serializing workbook: %v", err)
	}
	return buf.Bytes()
}

// buildFinancialWorkbook produces a single-sheet financial report fixture.
func buildFinancialWorkbook(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	header := []interface{}{
		"Loja ID", "Nome da Loja", "Tipo de Faturamento", "N° Pedido",
		"Pedido ID Completo", "Data do Pedido Ocorrência", "Data de Repasse",
		"Total do Pedido", "Valor dos Itens", "Valor Bruto", "Valor Ocorrência",
		"Percentual Comissão iFood",
	}
	sheet := append([][]interface{}{header}, rows...)
	return buildWorkbook(t, []string{"Relatório"}, map[string][][]interface{}{
		"Relatório": sheet,
	})
}

// buildConciliationWorkbook produces the two-sheet conciliation fixture with
// the payload on the second worksheet.
func buildConciliationWorkbook(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	header := []interface{}{
		"Competência", "Valor", "Pedido Associado iFood", "Título", "Loja ID",
	}
	sheet := append([][]interface{}{header}, rows...)
	return buildWorkbook(t, []string{"Resumo", "Dados"}, map[string][][]interface{}{
		"Resumo": {{"Resumo do período"}},
		"Dados":  sheet,
	})
}

func testFile(id, accountID, name string) *models.ReceivedFile {
	return &models.ReceivedFile{
		ID:               id,
		AccountID:        accountID,
		OriginalFileName: name,
		StoragePath:      accountID + "/" + name,
		Status:           models.StatusReceived,
	}
}
