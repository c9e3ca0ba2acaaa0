package reporting

import (
	"fmt"
	"net/url"
	"strings"
)

// Operation is one of the read endpoints the Reporting API exposes.
type Operation string

const (
	OpCustomer      Operation = "customer"
	OpCustomers     Operation = "customers"
	OpProduct       Operation = "product"
	OpProducts      Operation = "products"
	OpOrdersCreated Operation = "orders_created"
	OpClubs         Operation = "clubs"
	OpClubMembers   Operation = "club_members"
	OpTagMembers    Operation = "tag_members"
	OpGroupMembers  Operation = "group_members"
	OpQueryMembers  Operation = "query_members"
)

type operationRoute struct {
	segments []string
	params   []string
}

// Path segments starting with ":" are substituted from params, in order.
var operations = map[Operation]operationRoute{
	OpCustomer:      {segments: []string{"customers", ":id"}, params: []string{"id"}},
	OpCustomers:     {segments: []string{"customers"}},
	OpProduct:       {segments: []string{"products", ":sku"}, params: []string{"sku"}},
	OpProducts:      {segments: []string{"products"}},
	OpOrdersCreated: {segments: []string{"orders", "created", ":start", ":end"}, params: []string{"start", "end"}},
	OpClubs:         {segments: []string{"clubs"}},
	OpClubMembers:   {segments: []string{"clubs", ":id", "members"}, params: []string{"id"}},
	OpTagMembers:    {segments: []string{"tags", ":id", "customers"}, params: []string{"id"}},
	OpGroupMembers:  {segments: []string{"groups", ":id", "customers"}, params: []string{"id"}},
	OpQueryMembers:  {segments: []string{"queries", ":id", "customers"}, params: []string{"id"}},
}

// Operations returns every supported operation.
func Operations() []Operation {
	return []Operation{
		OpCustomer, OpCustomers, OpProduct, OpProducts, OpOrdersCreated,
		OpClubs, OpClubMembers, OpTagMembers, OpGroupMembers, OpQueryMembers,
	}
}

// ParseOperation converts raw input into an Operation.
func ParseOperation(value string) (Operation, error) {
	op := Operation(strings.TrimSpace(value))
	if _, ok := operations[op]; !ok {
		return "", fmt.Errorf("unknown reporting operation %q", value)
	}
	return op, nil
}

// Params returns the parameter names the operation requires.
func (o Operation) Params() []string {
	route, ok := operations[o]
	if !ok {
		return nil
	}
	out := make([]string, len(route.params))
	copy(out, route.params)
	return out
}

// Path renders the resource path for the operation. Every declared param must be present.
func (o Operation) Path(params map[string]string) (string, error) {
	route, ok := operations[o]
	if !ok {
		return "", fmt.Errorf("unknown reporting operation %q", o)
	}
	parts := make([]string, 0, len(route.segments))
	for _, seg := range route.segments {
		if !strings.HasPrefix(seg, ":") {
			parts = append(parts, seg)
			continue
		}
		name := strings.TrimPrefix(seg, ":")
		value := strings.TrimSpace(params[name])
		if value == "" {
			return "", fmt.Errorf("%s requires param %q", o, name)
		}
		parts = append(parts, url.PathEscape(value))
	}
	return "/" + strings.Join(parts, "/"), nil
}
