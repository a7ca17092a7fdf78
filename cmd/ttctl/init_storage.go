package main

import (
	"context"
	"errors"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const queueAlreadyExists = "QueueAlreadyExists"

func newInitStorageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-storage",
		Short: "Create the tables and the change-event queue",
		Long: `Create EMPLOYEES_TABLE, TASKS_TABLE and, when set, DOMAIN_EVENTS_QUEUE
in the account addressed by STORAGE_CONNECTION_STRING. Existing resources
are left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := requireEnv("STORAGE_CONNECTION_STRING", "EMPLOYEES_TABLE", "TASKS_TABLE")
			if err != nil {
				return err
			}
			connStr := env["STORAGE_CONNECTION_STRING"]
			ctx := cmd.Context()

			log.Info("storage init starting")
			if err := createTables(ctx, connStr, []string{env["EMPLOYEES_TABLE"], env["TASKS_TABLE"]}); err != nil {
				return err
			}
			if err := createQueues(ctx, connStr, []string{os.Getenv("DOMAIN_EVENTS_QUEUE")}); err != nil {
				return err
			}
			log.Info("storage init complete")
			return nil
		},
	}
}

func createTables(ctx context.Context, connStr string, names []string) error {
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, nil)
	if err != nil {
		return err
	}
	for _, name := range names {
		if name == "" {
			continue
		}
		_, err := svc.NewClient(name).CreateTable(ctx, nil)
		if err != nil && !alreadyExists(err, string(aztables.TableAlreadyExists)) {
			return err
		}
		log.WithField("table", name).Debug("table ready")
	}
	return nil
}

func createQueues(ctx context.Context, connStr string, names []string) error {
	for _, name := range names {
		if name == "" {
			continue
		}
		q, err := azqueue.NewQueueClientFromConnectionString(connStr, name, nil)
		if err != nil {
			return err
		}
		if _, err := q.Create(ctx, nil); err != nil && !alreadyExists(err, queueAlreadyExists) {
			return err
		}
		log.WithField("queue", name).Debug("queue ready")
	}
	return nil
}

func alreadyExists(err error, code string) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.ErrorCode == code
}
