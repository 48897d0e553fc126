package commands

import (
	"encoding/json"
	"fmt"

	"github.com/foundation42/microkernel/internal/kernel/services"
)

// outputJSON prints v as indented JSON.
func outputJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))

	return nil
}

// requireAuditDB resolves the --audit-db flag, erroring if unset.
func requireAuditDB() (*services.AuditSQLiteSink, error) {
	if auditDBPath == "" {
		return nil, fmt.Errorf("--audit-db is required")
	}

	return services.OpenAuditSink(auditDBPath)
}

// requireStateStore resolves the --state-root flag, erroring if unset.
func requireStateStore() (*services.StateStore, error) {
	if stateRoot == "" {
		return nil, fmt.Errorf("--state-root is required")
	}

	return services.NewStateStore(stateRoot)
}
