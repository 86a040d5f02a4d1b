package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/xuri/excelize/v2"

	"github.com/hercules-motores/service-analytics/internal/app"
	"github.com/hercules-motores/service-analytics/internal/config"
	"github.com/hercules-motores/service-analytics/internal/dates"
	"github.com/hercules-motores/service-analytics/internal/orders"
)

var (
	statuses = []string{"Aberto", "Em andamento", "Finalizado", "Finalizado", "Cancelado"}
	purposes = []string{"Garantia", "Garantia", "Venda"}
	families = []string{"Motores", "Bombas", "Ventiladores"}
	products = []string{"Motor 1/2 CV", "Motor 1 CV", "Bomba Periférica", "Ventilador de Teto"}
	defects  = []string{"Motor travado", "Ruído excessivo", "Não liga", "Aquecimento"}
	parts    = [][2]string{{"R100", "Rotor"}, {"E200", "Estator"}, {"C300", "Capacitor"}, {"M400", "Mancal"}}
	centers  = []struct{ name, city, uf string }{
		{"Assistência Recife", "Recife", "PE"},
		{"Técnica Paulista", "São Paulo", "SP"},
		{"Oficina Minas", "Belo Horizonte", "MG"},
	}
	resellers = []string{"Loja Centro", "Casa das Bombas", "Eletro Norte", "Distribuidora Sul"}
)

func main() {

	count := flag.Int("orders", 200, "number of service orders to generate")
	out := flag.String("out", "", "also write the generated workbook to this path")
	seed := flag.Uint64("seed", 1, "random seed")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	payload, err := buildWorkbook(*count, rand.New(rand.NewPCG(*seed, *seed)))
	if err != nil {
		log.Fatalf("build workbook: %v", err)
	}
	if *out != "" {
		if err := os.WriteFile(*out, payload, 0o644); err != nil {
			log.Fatalf("write workbook: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	deps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("build dependencies: %v", err)
	}
	defer deps.Close()

	result, err := deps.Importer.Import(ctx, "seed.xlsx", payload)
	if err != nil {
		log.Fatalf("import: %v", err)
	}
	fmt.Printf("Seed completed. scope=%s rows=%d orders=%d\n", cfg.ImportScope, result.Rows, result.Orders)
}

// buildWorkbook writes count orders, some with several replaced parts, as an
// xlsx workbook with real date serials.
func buildWorkbook(count int, rng *rand.Rand) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	header := []any{
		orders.FieldOrder, orders.FieldStatus, orders.FieldOpeningDate, orders.FieldClosingDate,
		orders.FieldPurpose, orders.FieldCenterName, orders.FieldCenterCity, orders.FieldCenterState,
		orders.FieldProduct, orders.FieldProductFamily, orders.FieldManufactureDate, orders.FieldBilledTo,
		orders.FieldDefectFound, orders.FieldPartCode, orders.FieldPartDescription,
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}

	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	line := 2
	for i := 0; i < count; i++ {
		opened := start.AddDate(0, 0, rng.IntN(540))
		status := pick(rng, statuses)
		var closed any
		if status == "Finalizado" {
			closed = serial(opened.AddDate(0, 0, 1+rng.IntN(45)))
		}
		center := centers[rng.IntN(len(centers))]
		made := opened.AddDate(0, -(6 + rng.IntN(48)), 0)

		items := 1 + rng.IntN(3)
		for j := 0; j < items; j++ {
			part := parts[rng.IntN(len(parts))]
			row := []any{
				fmt.Sprintf("%d", 100000+i), status, serial(opened), closed,
				pick(rng, purposes), center.name, center.city, center.uf,
				pick(rng, products), pick(rng, families), dates.Format(made), pick(rng, resellers),
				pick(rng, defects), part[0], part[1],
			}
			cell, err := excelize.CoordinatesToCellName(1, line)
			if err != nil {
				return nil, err
			}
			if err := f.SetSheetRow(sheet, cell, &row); err != nil {
				return nil, err
			}
			line++
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// serial is the spreadsheet day number of t.
func serial(t time.Time) float64 {
	epoch := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
	return float64(t.Sub(epoch) / (24 * time.Hour))
}

func pick(rng *rand.Rand, values []string) string {
	return values[rng.IntN(len(values))]
}
