package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hermespos/internal"
	"hermespos/internal/config"
	"hermespos/internal/reception"
	"hermespos/internal/source"
	"hermespos/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	cmd := os.Args[1]
	switch cmd {
	case "reception:import":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		ref := fs.String("ref", "", "scanned QR url or AADE mark token")
		supplier := fs.Int("supplier", 0, "supplier id (0 = detect from document)")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*ref) == "" {
			must(fmt.Errorf("--ref is required"))
		}

		fetcher := source.NewFetcher(time.Duration(cfg.HTTPTimeoutMs)*time.Millisecond, cfg.UserAgent)
		svc := reception.NewService(db, fetcher, cfg)
		res, err := svc.Import(context.Background(), *ref, *supplier)
		must(err)

		rec := res.Reception
		if res.Existing {
			fmt.Printf("already imported: reception=%d mark=%s status=%s lines=%d\n",
				rec.ID, rec.Mark, rec.Status, len(rec.Items))
		} else {
			fmt.Printf("draft created: reception=%d mark=%s supplier=%d lines=%d automapped=%d\n",
				rec.ID, rec.Mark, rec.SupplierID, len(rec.Items), res.AutoFilled)
		}
		if res.SupplierHint != nil {
			fmt.Printf("supplier detected from document: %d\n", *res.SupplierHint)
		}
		for _, sg := range res.Suggestions {
			fmt.Printf("  suggestion row=%d barcode=%s product=%s\n", sg.Row+1, sg.Barcode, sg.ProductName)
		}
	case "reception:apply":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.Int("id", 0, "reception id")
		row := fs.Int("row", 0, "1-based line number")
		barcode := fs.String("barcode", "", "barcode to assign (empty clears)")
		_ = fs.Parse(os.Args[2:])
		if *id <= 0 || *row <= 0 {
			must(fmt.Errorf("--id and --row are required"))
		}

		fetcher := source.NewFetcher(time.Duration(cfg.HTTPTimeoutMs)*time.Millisecond, cfg.UserAgent)
		svc := reception.NewService(db, fetcher, cfg)
		rec, err := svc.ApplySuggestion(*id, *row-1, *barcode)
		must(err)
		fmt.Printf("updated reception=%d row=%d barcode=%q\n", rec.ID, *row, *barcode)
	case "reception:post":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.Int("id", 0, "reception id")
		_ = fs.Parse(os.Args[2:])
		if *id <= 0 {
			must(fmt.Errorf("--id is required"))
		}

		poster := reception.NewPoster(db)
		sum, err := poster.Post(*id)
		must(err)
		fmt.Printf("posted reception=%d products=%d units=%d mappings=%d\n",
			sum.ReceptionID, sum.ProductsTouched, sum.UnitsAdded, sum.MappingsLearned)
	case "reception:list":
		list, err := db.ListReceptions()
		must(err)
		for _, r := range list {
			fmt.Printf("%d\t%s\t%s\tsupplier=%d\tlines=%d\tmark=%s\n",
				r.ID, r.ReceptionDate.Format("2006-01-02"), r.Status, r.SupplierID, r.Lines, r.Mark)
		}
		fmt.Printf("%d receptions\n", len(list))
	case "reception:delete":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.Int("id", 0, "reception id")
		_ = fs.Parse(os.Args[2:])
		if *id <= 0 {
			must(fmt.Errorf("--id is required"))
		}
		must(db.DeleteDraft(*id))
		fmt.Printf("deleted draft %d\n", *id)
	case "reception:export":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.Int("id", 0, "reception id")
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if *id <= 0 {
			must(fmt.Errorf("--id is required"))
		}
		path := *out
		if path == "" {
			path = filepath.Join(cfg.OutputDir, fmt.Sprintf("reception-%d.xlsx", *id))
		}
		must(reception.ExportReceptionXLSX(db, *id, path))
		fmt.Printf("exported reception %d to %s\n", *id, path)
	case "supplier:add":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		name := fs.String("name", "", "supplier name")
		address := fs.String("address", "", "address")
		phone := fs.String("phone", "", "phone")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*name) == "" {
			must(fmt.Errorf("--name is required"))
		}
		s := internal.Supplier{Name: strings.TrimSpace(*name)}
		if *address != "" {
			s.Address = internal.StringPtr(*address)
		}
		if *phone != "" {
			s.Phone = internal.StringPtr(*phone)
		}
		must(db.AddSupplier(&s))
		fmt.Printf("supplier added id=%d name=%s\n", s.ID, s.Name)
	case "supplier:list":
		list, err := db.ListSuppliers()
		must(err)
		for _, s := range list {
			fmt.Printf("%d\t%s\n", s.ID, s.Name)
		}
	case "product:add":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		barcode := fs.String("barcode", "", "barcode")
		name := fs.String("name", "", "product name")
		stock := fs.Int("stock", 0, "initial stock")
		supplier := fs.Int("supplier", 0, "supplier id (0 = none)")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*barcode) == "" || strings.TrimSpace(*name) == "" {
			must(fmt.Errorf("--barcode and --name are required"))
		}
		p := internal.Product{Barcode: strings.TrimSpace(*barcode), Name: strings.TrimSpace(*name), Stock: *stock}
		if *supplier > 0 {
			p.SupplierID = internal.IntPtr(*supplier)
		}
		must(db.AddProduct(&p))
		fmt.Printf("product added id=%d barcode=%s\n", p.ID, p.Barcode)
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("usage: hermespos <command>")
	fmt.Println("commands:")
	fmt.Println("  reception:import --ref=<qr url or mark> [--supplier=1]")
	fmt.Println("  reception:apply --id=1 --row=2 --barcode=5201234567890")
	fmt.Println("  reception:post --id=1")
	fmt.Println("  reception:list")
	fmt.Println("  reception:delete --id=1")
	fmt.Println("  reception:export --id=1 [--out=./out/reception-1.xlsx]")
	fmt.Println("  supplier:add --name=... [--address=...] [--phone=...]")
	fmt.Println("  supplier:list")
	fmt.Println("  product:add --barcode=... --name=... [--stock=0] [--supplier=1]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
