package sheet

import (
	"testing"

	"github.com/xuri/excelize/v2"

	ingerrors "ifood-ingestion-service/pkg/errors"
)

func buildWorkbook(t *testing.T, sheets map[string][][]interface{}, order []string) []byte {
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

func TestLoadSecondSheet(t *testing.T) {
	data := buildWorkbook(t, map[string][][]interface{}{
		"Resumo": {
			{"Este é um resumo"},
		},
		"Dados": {
			{"Competência", "Valor", "Coluna Ignorada"},
			{"01/03/2025", "1.500,00", "lixo"},
			{"02/03/2025", "-30,50", "lixo"},
		},
	}, []string{"Resumo", "Dados"})

	table, err := Load(data, LoadOptions{
		FileName:   "conciliacao.xlsx",
		SheetIndex: 1,
		Mapping: map[string]string{
			"competencia": "competence_date",
			"valor":       "gross_value",
		},
		Canonical:   []string{"competence_date", "gross_value", "title"},
		RequiredAll: []string{"competence_date", "gross_value"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(table.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(table.Rows))
	}
	if got := table.Rows[0]["competence_date"]; got != "01/03/2025" {
		t.Errorf("competence_date = %q", got)
	}
	if got := table.Rows[0]["gross_value"]; got != "1.500,00" {
		t.Errorf("gross_value = %q", got)
	}
	// Canonical columns absent from the file are backfilled empty.
	if got, ok := table.Rows[0]["title"]; !ok || got != "" {
		t.Errorf("expected empty backfilled title, got %q (present=%v)", got, ok)
	}
	// Unmapped source columns are dropped.
	if _, ok := table.Rows[0]["coluna_ignorada"]; ok {
		t.Error("unmapped column should not survive loading")
	}
}

func TestLoadMissingSheet(t *testing.T) {
	data := buildWorkbook(t, map[string][][]interface{}{
		"Resumo": {{"só uma aba"}},
	}, []string{"Resumo"})

	_, err := Load(data, LoadOptions{
		FileName:   "conciliacao.xlsx",
		SheetIndex: 1,
		Canonical:  []string{"competence_date"},
	})
	ie, ok := ingerrors.AsIngestError(err)
	if !ok {
		t.Fatalf("expected IngestError, got %v", err)
	}
	if ie.Code != ingerrors.CodeMissingSheet {
		t.Errorf("code = %s, want %s", ie.Code, ingerrors.CodeMissingSheet)
	}
}

func TestLoadMissingRequiredColumns(t *testing.T) {
	data := buildWorkbook(t, map[string][][]interface{}{
		"Planilha": {
			{"Outra Coluna"},
			{"valor qualquer"},
		},
	}, []string{"Planilha"})

	_, err := Load(data, LoadOptions{
		FileName:    "relatorio.xlsx",
		SheetIndex:  0,
		Canonical:   []string{"numero_pedido", "total_do_pedido", "outra_coluna"},
		RequiredAny: []string{"numero_pedido", "total_do_pedido"},
	})
	ie, ok := ingerrors.AsIngestError(err)
	if !ok {
		t.Fatalf("expected IngestError, got %v", err)
	}
	if ie.Code != ingerrors.CodeMissingColumns {
		t.Errorf("code = %s, want %s", ie.Code, ingerrors.CodeMissingColumns)
	}
	if ie.Context["requirement"] != "at_least_one_of" {
		t.Errorf("expected at_least_one_of requirement context, got %v", ie.Context["requirement"])
	}
}

func TestLoadCorruptedWorkbook(t *testing.T) {
	_, err := Load([]byte("this is not a spreadsheet"), LoadOptions{
		FileName:  "broken.xlsx",
		Canonical: []string{"a"},
	})
	ie, ok := ingerrors.AsIngestError(err)
	if !ok {
		t.Fatalf("expected IngestError, got %v", err)
	}
	if ie.Code != ingerrors.CodeWorkbookCorrupted {
		t.Errorf("code = %s, want %s", ie.Code, ingerrors.CodeWorkbookCorrupted)
	}
}

func TestLoadSkipsEmptyRows(t *testing.T) {
	data := buildWorkbook(t, map[string][][]interface{}{
		"Planilha": {
			{"Numero Pedido", "Total do Pedido"},
			{"123", "10,00"},
			{"", ""},
			{"456", "20,00"},
		},
	}, []string{"Planilha"})

	table, err := Load(data, LoadOptions{
		FileName:   "relatorio.xlsx",
		SheetIndex: 0,
		Canonical:  []string{"numero_pedido", "total_do_pedido"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("expected empty row to be skipped, got %d rows", len(table.Rows))
	}
}

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Competência", "competencia"},
		{"  VALOR  ", "valor"},
		{"N° PEDIDO", "numero_pedido"},
		{"Data do Pedido Ocorrência", "data_do_pedido_ocorrencia"},
		{"Promoção Custeada pelo iFood", "promocao_custeada_pelo_ifood"},
		{"Taxa de Serviço (%)", "taxa_de_servico"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeHeader(tt.in); got != tt.want {
			t.Errorf("NormalizeHeader(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
