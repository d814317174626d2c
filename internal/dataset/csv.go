package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/opensource-finance/talon/internal/domain"
)

// LoadCSVDir reads the four input tables from <dir>/<table>.csv.
func LoadCSVDir(dir string) (*domain.Dataset, error) {
	ds := &domain.Dataset{}

	accountRows, header, err := readCSV(filepath.Join(dir, TableAccounts+".csv"))
	if err != nil {
		return nil, err
	}
	if ds.Accounts, err = accountsFromRows(header, accountRows); err != nil {
		return nil, err
	}

	deviceRows, header, err := readCSV(filepath.Join(dir, TableDevices+".csv"))
	if err != nil {
		return nil, err
	}
	if ds.Devices, err = devicesFromRows(header, deviceRows); err != nil {
		return nil, err
	}

	linkRows, header, err := readCSV(filepath.Join(dir, TableLinks+".csv"))
	if err != nil {
		return nil, err
	}
	if ds.Links, err = linksFromRows(header, linkRows); err != nil {
		return nil, err
	}

	transferRows, header, err := readCSV(filepath.Join(dir, TableTransfers+".csv"))
	if err != nil {
		return nil, err
	}
	if ds.Transfers, err = transfersFromRows(header, transferRows); err != nil {
		return nil, err
	}

	return ds, nil
}

// WriteCSVDir writes the four input tables to <dir>/<table>.csv,
// creating dir if needed.
func WriteCSVDir(dir string, ds *domain.Dataset) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	accounts := make([][]string, 0, len(ds.Accounts)+1)
	accounts = append(accounts, AccountColumns)
	for _, a := range ds.Accounts {
		accounts = append(accounts, []string{
			a.ID,
			strconv.FormatBool(a.IsFraud),
			strconv.Itoa(a.AgeDays),
			a.Verification,
		})
	}
	if err := writeCSV(filepath.Join(dir, TableAccounts+".csv"), accounts); err != nil {
		return err
	}

	devices := make([][]string, 0, len(ds.Devices)+1)
	devices = append(devices, DeviceColumns)
	for _, d := range ds.Devices {
		devices = append(devices, []string{d.ID, d.Type})
	}
	if err := writeCSV(filepath.Join(dir, TableDevices+".csv"), devices); err != nil {
		return err
	}

	links := make([][]string, 0, len(ds.Links)+1)
	links = append(links, LinkColumns)
	for _, l := range ds.Links {
		links = append(links, []string{l.AccountID, l.DeviceID})
	}
	if err := writeCSV(filepath.Join(dir, TableLinks+".csv"), links); err != nil {
		return err
	}

	transfers := make([][]string, 0, len(ds.Transfers)+1)
	transfers = append(transfers, TransferColumns)
	for _, t := range ds.Transfers {
		transfers = append(transfers, []string{
			t.ID,
			t.SenderID,
			t.ReceiverID,
			strconv.FormatFloat(t.Amount, 'f', 2, 64),
			t.Timestamp.Format(time.RFC3339),
			strconv.FormatBool(t.IsFraud),
			t.Status,
		})
	}
	return writeCSV(filepath.Join(dir, TableTransfers+".csv"), transfers)
}

func readCSV(path string) (rows [][]string, header []string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	all, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("%w: %s has no header row", domain.ErrMissingColumn, path)
	}
	return all[1:], all[0], nil
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	w.Flush()
	return w.Error()
}

func accountsFromRows(header []string, rows [][]string) ([]domain.Account, error) {
	idx, err := columnIndex(TableAccounts, header, AccountColumns)
	if err != nil {
		return nil, err
	}
	accounts := make([]domain.Account, 0, len(rows))
	for _, row := range rows {
		isFraud, err := parseBool(row[idx["is_fraud_label"]])
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", row[idx["account_id"]], err)
		}
		age, err := parseInt(row[idx["account_age_days"]])
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", row[idx["account_id"]], err)
		}
		accounts = append(accounts, domain.Account{
			ID:           row[idx["account_id"]],
			IsFraud:      isFraud,
			AgeDays:      age,
			Verification: row[idx["verification_level"]],
		})
	}
	return accounts, nil
}

func devicesFromRows(header []string, rows [][]string) ([]domain.Device, error) {
	idx, err := columnIndex(TableDevices, header, DeviceColumns)
	if err != nil {
		return nil, err
	}
	devices := make([]domain.Device, 0, len(rows))
	for _, row := range rows {
		devices = append(devices, domain.Device{
			ID:   row[idx["device_id"]],
			Type: row[idx["device_type"]],
		})
	}
	return devices, nil
}

func linksFromRows(header []string, rows [][]string) ([]domain.DeviceLink, error) {
	idx, err := columnIndex(TableLinks, header, LinkColumns)
	if err != nil {
		return nil, err
	}
	links := make([]domain.DeviceLink, 0, len(rows))
	for _, row := range rows {
		links = append(links, domain.DeviceLink{
			AccountID: row[idx["account_id"]],
			DeviceID:  row[idx["device_id"]],
		})
	}
	return links, nil
}

func transfersFromRows(header []string, rows [][]string) ([]domain.Transfer, error) {
	idx, err := columnIndex(TableTransfers, header, TransferColumns)
	if err != nil {
		return nil, err
	}
	transfers := make([]domain.Transfer, 0, len(rows))
	for _, row := range rows {
		id := row[idx["transfer_id"]]
		amount, err := parseFloat(row[idx["amount"]])
		if err != nil {
			return nil, fmt.Errorf("transfer %s: %w", id, err)
		}
		ts, err := parseTimestamp(row[idx["timestamp"]])
		if err != nil {
			return nil, fmt.Errorf("transfer %s: %w", id, err)
		}
		isFraud, err := parseBool(row[idx["is_fraud_label"]])
		if err != nil {
			return nil, fmt.Errorf("transfer %s: %w", id, err)
		}
		transfers = append(transfers, domain.Transfer{
			ID:         id,
			SenderID:   row[idx["sender_id"]],
			ReceiverID: row[idx["receiver_id"]],
			Amount:     amount,
			Timestamp:  ts,
			IsFraud:    isFraud,
			Status:     row[idx["status"]],
		})
	}
	return transfers, nil
}
