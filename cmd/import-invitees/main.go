// Command import-invitees loads invitees from a CSV file with a
// name,phone_number,email,company header row, skipping numbers that are
// already registered.
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strings"

	"event-rsvp-bot/internal/config"
	"event-rsvp-bot/internal/phone"
	"event-rsvp-bot/internal/storage"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: import-invitees <file.csv>")
		fmt.Println("\nExpected CSV format:")
		fmt.Println("name,phone_number,email,company")
		fmt.Println("John Doe,+971501234567,john@example.com,Company Name")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		fmt.Printf("Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	file, err := os.Open(os.Args[1])
	if err != nil {
		fmt.Printf("Error opening CSV file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		fmt.Printf("Error reading CSV file: %v\n", err)
		os.Exit(1)
	}
	if len(rows) < 2 {
		fmt.Println("No invitees found in CSV file")
		os.Exit(0)
	}

	columns := map[string]int{}
	for i, h := range rows[0] {
		columns[strings.TrimSpace(strings.ToLower(h))] = i
	}

	ctx := context.Background()
	var added, skipped, failed int

	fmt.Println("Importing invitees from CSV...")
	for _, row := range rows[1:] {
		name := field(row, columns, "name")
		number := phone.Canonicalize(field(row, columns, "phone_number"))

		if name == "" || number == "" {
			fmt.Printf("⚠️  Skipped: missing name or phone number - %v\n", row)
			failed++
			continue
		}

		if _, err := store.InviteeByPhone(ctx, number); err == nil {
			fmt.Printf("⏭️  Skipped: %s (%s) - already exists\n", name, number)
			skipped++
			continue
		} else if !errors.Is(err, storage.ErrNotFound) {
			fmt.Printf("❌ Error checking %s: %v\n", name, err)
			failed++
			continue
		}

		if _, err := store.CreateInvitee(ctx, name, number, field(row, columns, "email"), field(row, columns, "company")); err != nil {
			fmt.Printf("❌ Error adding %s: %v\n", name, err)
			failed++
			continue
		}

		fmt.Printf("✅ Added: %s (%s)\n", name, number)
		added++
	}

	fmt.Println("\nImport Summary:")
	fmt.Printf("  Added: %d\n", added)
	fmt.Printf("  Skipped (already exist): %d\n", skipped)
	fmt.Printf("  Errors: %d\n", failed)
	fmt.Printf("  Total processed: %d\n", len(rows)-1)
}

func field(row []string, columns map[string]int, name string) string {
	i, ok := columns[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
