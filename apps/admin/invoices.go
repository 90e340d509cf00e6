package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) generateInvoices() error {
	created, err := cli.invoices.GenerateInvoices(context.Background(), cli.now().UTC())
	if err != nil {
		return err
	}
	fmt.Printf("%d invoice(s) generated\n", created)
	return nil
}
