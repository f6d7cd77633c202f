package ingest

import (
	"strings"

	"github.com/google/uuid"

	"ifood-ingestion-service/internal/models"
	"ifood-ingestion-service/internal/parsers"
	"ifood-ingestion-service/internal/rowkey"
	"ifood-ingestion-service/internal/sheet"
	"ifood-ingestion-service/pkg/logger"
)

// Financial report destination and batching.
const (
	financialTable      = "sales_data"
	financialConflict   = "upsert_key"
	financialBatchSize  = 500
	financialSheetIndex = 0
)

// financialColumns is the database column set of the financial report, in
// schema order. The export carries these headers in Portuguese; header
// normalization makes them match directly.
var financialColumns = []string{
	"loja_id", "nome_da_loja", "tipo_de_faturamento", "canal_de_vendas",
	"numero_pedido", "pedido_id_completo", "data_do_pedido_ocorrencia",
	"data_de_conclusao", "data_de_repasse", "origem_de_forma_de_pagamento",
	"formas_de_pagamento", "total_do_pedido", "valor_dos_itens",
	"taxa_de_entrega", "taxa_de_servico", "promocao_custeada_pelo_ifood",
	"promocao_custeada_pela_loja", "percentual_comissao_ifood",
	"valor_comissao_ifood", "percentual_pela_transacao_do_pagamento",
	"comissao_pela_transacao_do_pagamento",
	"percentual_taxa_plano_repasse_1_semana",
	"valor_taxa_plano_repasse_1_semana", "base_de_calculo", "valor_bruto",
	"solicitacao_servicos_entrega_ifood", "desconto_solicitacao_entrega_ifood",
	"valor_liquido", "valor_ocorrencia",
}

// financialHeaderAliases renames headers that older export revisions spell
// differently from the database schema.
var financialHeaderAliases = map[string]string{
	"desconto_na_solicitacao_de_entrega_ifood":     "desconto_solicitacao_entrega_ifood",
	"solicitacao_de_servicos_de_entrega_ifood":     "solicitacao_servicos_entrega_ifood",
	"percentual_taxa_plano_de_repasse_em_1_semana": "percentual_taxa_plano_repasse_1_semana",
}

// financialRequiredAny gates the file-type check: a financial export must
// carry at least one of these identifying columns.
var financialRequiredAny = []string{
	"numero_pedido", "pedido_id_completo", "valor_dos_itens", "total_do_pedido",
}

// Natural keys are versioned column selections; see the rowkey package for
// why the version participates in the digest. Occurrence rows (standalone
// adjustments with no order) and order rows identify by different columns.
var (
	financialOrderKey = rowkey.KeySpec{
		Version: "fin-order-v2",
		Columns: []string{
			"account_id", "numero_pedido", "pedido_id_completo",
			"data_de_repasse", "valor_bruto", "valor_ocorrencia",
		},
	}
	financialOccurrenceKey = rowkey.KeySpec{
		Version: "fin-occurrence-v2",
		Columns: []string{
			"account_id", "loja_id", "data_do_pedido_ocorrencia",
			"valor_ocorrencia", "tipo_de_faturamento",
		},
	}
	financialContentColumns = append([]string{"account_id"}, financialColumns...)
)

const occurrenceBillingType = "ocorrência avulsa"

type financialPrep struct {
	Plan BatchPlan
	Rows []models.FinancialRow
}

// prepareFinancial turns spreadsheet bytes into a deduplicated batch plan
// plus the typed rows used for local KPI aggregation.
func prepareFinancial(file *models.ReceivedFile, data []byte, log logger.Logger) (*financialPrep, error) {
	mapping := make(map[string]string, len(financialColumns)+len(financialHeaderAliases))
	for _, col := range financialColumns {
		mapping[col] = col
	}
	for alias, col := range financialHeaderAliases {
		mapping[alias] = col
	}

	table, err := sheet.Load(data, sheet.LoadOptions{
		FileName:    file.OriginalFileName,
		SheetIndex:  financialSheetIndex,
		Mapping:     mapping,
		Canonical:   financialColumns,
		RequiredAny: financialRequiredAny,
	})
	if err != nil {
		return nil, err
	}

	rows := make([]models.FinancialRow, 0, len(table.Rows))
	for _, cells := range table.Rows {
		row := mapFinancialRow(cells)
		values := financialCanonicalValues(file.AccountID, &row)
		row.ContentHash = rowkey.ContentHash(financialContentColumns, values)
		row.UpsertKey = deriveFinancialKey(&row, values)
		rows = append(rows, row)
	}

	rows, dedup := dedupeFinancial(rows)
	if dedup > 0 {
		log.WithField("file_id", file.ID).
			Warnf("%d rows collapsed onto an existing upsert key in the same file", dedup)
	}

	records := make([]Record, 0, len(rows))
	for i := range rows {
		records = append(records, financialRecord(file, &rows[i]))
	}

	return &financialPrep{
		Plan: BatchPlan{
			Table:          financialTable,
			ConflictColumn: financialConflict,
			BatchSize:      financialBatchSize,
			Records:        records,
			Deduplicated:   dedup,
			AffectedDates:  orderDates(rows),
			SourceRows:     len(table.Rows),
		},
		Rows: rows,
	}, nil
}

func mapFinancialRow(cells map[string]string) models.FinancialRow {
	return models.FinancialRow{
		StoreID:              parsers.Identifier(cells["loja_id"]),
		StoreName:            text(cells["nome_da_loja"]),
		BillingType:          text(cells["tipo_de_faturamento"]),
		SalesChannel:         text(cells["canal_de_vendas"]),
		OrderNumber:          parsers.Identifier(cells["numero_pedido"]),
		OrderID:              parsers.Identifier(cells["pedido_id_completo"]),
		OrderDate:            parsers.Date(cells["data_do_pedido_ocorrencia"]),
		ConclusionDate:       parsers.Date(cells["data_de_conclusao"]),
		PayoutDate:           parsers.Date(cells["data_de_repasse"]),
		PaymentOrigin:        text(cells["origem_de_forma_de_pagamento"]),
		PaymentMethods:       text(cells["formas_de_pagamento"]),
		OrderTotal:           parsers.OrderTotal(cells["total_do_pedido"]),
		ItemsValue:           parsers.Currency(cells["valor_dos_itens"]),
		DeliveryFee:          parsers.Currency(cells["taxa_de_entrega"]),
		ServiceFee:           parsers.Currency(cells["taxa_de_servico"]),
		IfoodPromo:           parsers.Currency(cells["promocao_custeada_pelo_ifood"]),
		StorePromo:           parsers.Currency(cells["promocao_custeada_pela_loja"]),
		IfoodCommissionPct:   parsers.Percent(cells["percentual_comissao_ifood"]),
		IfoodCommissionValue: parsers.Currency(cells["valor_comissao_ifood"]),
		PaymentTxPct:         parsers.Percent(cells["percentual_pela_transacao_do_pagamento"]),
		PaymentTxValue:       parsers.Currency(cells["comissao_pela_transacao_do_pagamento"]),
		PayoutPlanPct:        parsers.Percent(cells["percentual_taxa_plano_repasse_1_semana"]),
		PayoutPlanValue:      parsers.Currency(cells["valor_taxa_plano_repasse_1_semana"]),
		CalcBase:             parsers.Currency(cells["base_de_calculo"]),
		GrossValue:           parsers.Currency(cells["valor_bruto"]),
		DeliveryRequest:      parsers.Currency(cells["solicitacao_servicos_entrega_ifood"]),
		DeliveryDiscount:     parsers.Currency(cells["desconto_solicitacao_entrega_ifood"]),
		NetValue:             parsers.Currency(cells["valor_liquido"]),
		OccurrenceValue:      parsers.Currency(cells["valor_ocorrencia"]),
	}
}

// financialCanonicalValues renders the row back to canonical strings for key
// derivation, so the key depends on normalized values rather than on the
// formatting quirks of a particular export.
func financialCanonicalValues(accountID string, row *models.FinancialRow) map[string]string {
	return map[string]string{
		"account_id":                             accountID,
		"loja_id":                                models.StringValue(row.StoreID),
		"nome_da_loja":                           models.StringValue(row.StoreName),
		"tipo_de_faturamento":                    models.StringValue(row.BillingType),
		"canal_de_vendas":                        models.StringValue(row.SalesChannel),
		"numero_pedido":                          models.StringValue(row.OrderNumber),
		"pedido_id_completo":                     models.StringValue(row.OrderID),
		"data_do_pedido_ocorrencia":              models.TimeValue(row.OrderDate),
		"data_de_conclusao":                      models.TimeValue(row.ConclusionDate),
		"data_de_repasse":                        models.TimeValue(row.PayoutDate),
		"origem_de_forma_de_pagamento":           models.StringValue(row.PaymentOrigin),
		"formas_de_pagamento":                    models.StringValue(row.PaymentMethods),
		"total_do_pedido":                        models.FloatValue(row.OrderTotal),
		"valor_dos_itens":                        models.FloatValue(row.ItemsValue),
		"taxa_de_entrega":                        models.FloatValue(row.DeliveryFee),
		"taxa_de_servico":                        models.FloatValue(row.ServiceFee),
		"promocao_custeada_pelo_ifood":           models.FloatValue(row.IfoodPromo),
		"promocao_custeada_pela_loja":            models.FloatValue(row.StorePromo),
		"percentual_comissao_ifood":              models.FloatValue(row.IfoodCommissionPct),
		"valor_comissao_ifood":                   models.FloatValue(row.IfoodCommissionValue),
		"percentual_pela_transacao_do_pagamento": models.FloatValue(row.PaymentTxPct),
		"comissao_pela_transacao_do_pagamento":   models.FloatValue(row.PaymentTxValue),
		"percentual_taxa_plano_repasse_1_semana": models.FloatValue(row.PayoutPlanPct),
		"valor_taxa_plano_repasse_1_semana":      models.FloatValue(row.PayoutPlanValue),
		"base_de_calculo":                        models.FloatValue(row.CalcBase),
		"valor_bruto":                            models.FloatValue(row.GrossValue),
		"solicitacao_servicos_entrega_ifood":     models.FloatValue(row.DeliveryRequest),
		"desconto_solicitacao_entrega_ifood":     models.FloatValue(row.DeliveryDiscount),
		"valor_liquido":                          models.FloatValue(row.NetValue),
		"valor_ocorrencia":                       models.FloatValue(row.OccurrenceValue),
	}
}

// deriveFinancialKey picks the natural key for the row. Standalone
// occurrences key on the occurrence fields, order rows key on the order
// fields, and rows carrying neither identity fall back to the full content
// hash so re-ingesting the same file still updates in place.
//
// The order key requires pedido_id_completo. The short numero_pedido
// repeats across stores and days, so a row carrying only the short number
// lacks a usable order identity and takes the content hash instead.
func deriveFinancialKey(row *models.FinancialRow, values map[string]string) string {
	if strings.EqualFold(strings.TrimSpace(models.StringValue(row.BillingType)), occurrenceBillingType) {
		return financialOccurrenceKey.Digest(values)
	}
	if row.OrderID != nil {
		return financialOrderKey.Digest(values)
	}
	return rowkey.ContentHash(financialContentColumns, values)
}

// dedupeFinancial collapses rows sharing an upsert key, keeping the last
// occurrence. Exports list corrections after the rows they amend, so the
// last row is the authoritative one.
func dedupeFinancial(rows []models.FinancialRow) ([]models.FinancialRow, int) {
	last := make(map[string]int, len(rows))
	for i := range rows {
		last[rows[i].UpsertKey] = i
	}
	if len(last) == len(rows) {
		return rows, 0
	}

	kept := make([]models.FinancialRow, 0, len(last))
	for i := range rows {
		if last[rows[i].UpsertKey] == i {
			kept = append(kept, rows[i])
		}
	}
	return kept, len(rows) - len(kept)
}

func financialRecord(file *models.ReceivedFile, row *models.FinancialRow) Record {
	record := Record{
		"id":                                     uuid.NewString(),
		"account_id":                             file.AccountID,
		"received_file_id":                       file.ID,
		"upsert_key":                             row.UpsertKey,
		"loja_id":                                row.StoreID,
		"nome_da_loja":                           row.StoreName,
		"tipo_de_faturamento":                    row.BillingType,
		"canal_de_vendas":                        row.SalesChannel,
		"numero_pedido":                          row.OrderNumber,
		"pedido_id_completo":                     row.OrderID,
		"data_do_pedido_ocorrencia":              parsers.ISODate(row.OrderDate),
		"data_de_conclusao":                      parsers.ISODate(row.ConclusionDate),
		"data_de_repasse":                        parsers.ISODate(row.PayoutDate),
		"origem_de_forma_de_pagamento":           row.PaymentOrigin,
		"formas_de_pagamento":                    row.PaymentMethods,
		"total_do_pedido":                        row.OrderTotal,
		"valor_dos_itens":                        row.ItemsValue,
		"taxa_de_entrega":                        row.DeliveryFee,
		"taxa_de_servico":                        row.ServiceFee,
		"promocao_custeada_pelo_ifood":           row.IfoodPromo,
		"promocao_custeada_pela_loja":            row.StorePromo,
		"percentual_comissao_ifood":              row.IfoodCommissionPct,
		"valor_comissao_ifood":                   row.IfoodCommissionValue,
		"percentual_pela_transacao_do_pagamento": row.PaymentTxPct,
		"comissao_pela_transacao_do_pagamento":   row.PaymentTxValue,
		"percentual_taxa_plano_repasse_1_semana": row.PayoutPlanPct,
		"valor_taxa_plano_repasse_1_semana":      row.PayoutPlanValue,
		"base_de_calculo":                        row.CalcBase,
		"valor_bruto":                            row.GrossValue,
		"solicitacao_servicos_entrega_ifood":     row.DeliveryRequest,
		"desconto_solicitacao_entrega_ifood":     row.DeliveryDiscount,
		"valor_liquido":                          row.NetValue,
		"valor_ocorrencia":                       row.OccurrenceValue,
	}
	record["raw_data"] = rawJSON(record)
	return record
}

func orderDates(rows []models.FinancialRow) []string {
	seen := make(map[string]bool)
	var dates []string
	for i := range rows {
		if rows[i].OrderDate == nil {
			continue
		}
		date := rows[i].OrderDate.Format("2006-01-02")
		if !seen[date] {
			seen[date] = true
			dates = append(dates, date)
		}
	}
	return dates
}

func text(cell string) *string {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
