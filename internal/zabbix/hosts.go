package zabbix

import (
	"context"
	"fmt"
	"strings"
)

// agentInterfaceType is the Zabbix agent host interface.
const agentInterfaceType = 1

// Item is a host item that can be charted.
type Item struct {
	// ID is the item identifier.
	ID string `json:"itemid"`
	// Name is the item name as shown in the frontend.
	Name string `json:"name"`
}

type hostInterface struct {
	IP string `json:"ip"`
}

// HostAddress returns the IP of the host's first agent interface.
func (s *Session) HostAddress(ctx context.Context, hostID string) (string, error) {
	params := map[string]any{
		"output":  []string{"ip"},
		"hostids": []string{hostID},
		"filter":  map[string]any{"type": agentInterfaceType},
	}

	var interfaces []hostInterface
	if err := s.Call(ctx, "hostinterface.get", params, &interfaces); err != nil {
		return "", fmt.Errorf("fetch interfaces of host %s: %w", hostID, err)
	}

	if len(interfaces) == 0 || interfaces[0].IP == "" {
		return "", fmt.Errorf("%w: host %s", ErrNoAddress, hostID)
	}

	return interfaces[0].IP, nil
}

// Items returns the items of a host. A non-empty search limits them to
// names containing it.
func (s *Session) Items(ctx context.Context, hostID, search string) ([]Item, error) {
	params := map[string]any{
		"output":    []string{"itemid", "name"},
		"hostids":   hostID,
		"sortfield": "name",
	}

	if search != "" {
		params["search"] = map[string]string{"name": search}
	}

	var items []Item
	if err := s.Call(ctx, "item.get", params, &items); err != nil {
		return nil, fmt.Errorf("fetch items of host %s: %w", hostID, err)
	}

	return items, nil
}

// ItemIDByName returns the first host item whose name contains name, ignoring case.
func (s *Session) ItemIDByName(ctx context.Context, hostID, name string) (string, error) {
	items, err := s.Items(ctx, hostID, name)
	if err != nil {
		return "", err
	}

	lowered := strings.ToLower(name)
	for _, item := range items {
		if strings.Contains(strings.ToLower(item.Name), lowered) {
			return item.ID, nil
		}
	}

	return "", fmt.Errorf("%w: %q on host %s", ErrItemNotFound, name, hostID)
}
