package network

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jbweber/croft/api/v1alpha1"
	"github.com/jbweber/croft/internal/dhcp"
	"github.com/jbweber/croft/internal/naming"
)

// ensureReservation converges the DHCP reservation of an adapter. A
// reservation is correct only when both its address and its
// MAC-derived client id match; a record matching on just one key is
// stale and removed, which can delete two records in a single pass.
// Any write to a scope with a failover partner is replicated so both
// servers answer consistently.
func (r *Reconciler) ensureReservation(ctx context.Context, vmName string, desired v1alpha1.DesiredNetworkAdapter, mac string) error {
	clientID, err := naming.ClientIDFromMAC(mac)
	if err != nil {
		return fmt.Errorf("adapter '%s': %w", desired.Name, err)
	}
	server, scope := desired.DHCPServer, desired.DHCPScope

	reservations, err := r.dhcp.Reservations(ctx, server, scope)
	if err != nil {
		return fmt.Errorf("failed to list reservations in scope %s: %w", scope, err)
	}

	matched := false
	wrote := false
	for _, res := range reservations {
		byIP := res.IPAddress == desired.IPAddress
		byClient := strings.EqualFold(res.ClientID, clientID)
		switch {
		case byIP && byClient:
			matched = true
		case byIP || byClient:
			log.Printf("Removing stale reservation %s (%s) from scope %s...", res.IPAddress, res.ClientID, scope)
			if err := r.dhcp.RemoveReservation(ctx, server, scope, res.IPAddress); err != nil {
				return fmt.Errorf("failed to remove stale reservation %s: %w", res.IPAddress, err)
			}
			wrote = true
		}
	}

	if !matched {
		log.Printf("Creating reservation %s for '%s' in scope %s...", desired.IPAddress, vmName, scope)
		err := r.dhcp.AddReservation(ctx, server, scope, dhcp.Reservation{
			IPAddress: desired.IPAddress,
			ClientID:  clientID,
			Name:      vmName,
		})
		if err != nil {
			return fmt.Errorf("failed to create reservation %s: %w", desired.IPAddress, err)
		}
		wrote = true
	}

	if desired.Router != "" {
		if changed, err := r.ensureRouter(ctx, server, desired); err != nil {
			return err
		} else if changed {
			wrote = true
		}
	}

	if wrote {
		partner, err := r.dhcp.ScopeFailover(ctx, server, scope)
		if err != nil {
			return fmt.Errorf("failed to check failover of scope %s: %w", scope, err)
		}
		if partner != "" {
			log.Printf("Replicating scope %s to its failover partner...", scope)
			if err := r.dhcp.ReplicateScope(ctx, server, scope); err != nil {
				return fmt.Errorf("failed to replicate scope %s: %w", scope, err)
			}
		}
	}
	return nil
}

// ensureRouter sets the router option on a reservation that has none.
// A reservation already holding a different router is warned about,
// never overwritten.
func (r *Reconciler) ensureRouter(ctx context.Context, server string, desired v1alpha1.DesiredNetworkAdapter) (bool, error) {
	router, err := r.dhcp.RouterOption(ctx, server, desired.IPAddress)
	if err != nil {
		return false, fmt.Errorf("failed to read router option of %s: %w", desired.IPAddress, err)
	}
	switch {
	case router == "":
		log.Printf("Setting router %s on reservation %s...", desired.Router, desired.IPAddress)
		if err := r.dhcp.SetRouterOption(ctx, server, desired.IPAddress, desired.Router); err != nil {
			return false, fmt.Errorf("failed to set router option on %s: %w", desired.IPAddress, err)
		}
		return true, nil
	case router != desired.Router:
		log.Printf("Warning: reservation %s has router %s instead of %s, leaving it", desired.IPAddress, router, desired.Router)
	}
	return false, nil
}
