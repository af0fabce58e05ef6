package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/fulfillment"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/ident"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/imaging"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/jsonfile"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/model"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/shipping"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/storefront"
)

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string, positional int) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		return nil, usagef("%v", err)
	}
	if fs.NArg() != positional {
		return nil, usagef("expected %d argument(s), got %d", positional, fs.NArg())
	}
	return fs.Args(), nil
}

func parsePrice(s string) (float64, error) {
	price, err := strconv.ParseFloat(strings.TrimPrefix(s, "$"), 64)
	if err != nil || math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, usagef("invalid price %q", s)
	}
	return price, nil
}

func (a *app) printJSON(v any) error {
	data, err := jsonfile.Marshal(v)
	if err != nil {
		return err
	}
	_, err = a.out.Write(data)
	return err
}

func cmdAdd(a *app, args []string) error {
	fs := newFlagSet("add")
	category := fs.String("category", "", "")
	qty := fs.Int("qty", 1, "")
	pos, err := parseFlags(fs, args, 4)
	if err != nil {
		return err
	}

	item := model.Item{ID: pos[0], Name: pos[1], Variant: pos[2], Quantity: *qty}
	if item.Price, err = parsePrice(pos[3]); err != nil {
		return err
	}
	switch c, ok := ident.CategoryOf(item.ID); {
	case *category != "":
		item.Category = model.Category(*category)
	case ok:
		item.Category = c
	default:
		item.Category = model.CategoryAnimals
	}

	inv, err := a.inventory()
	if err != nil {
		return err
	}
	if err := inv.Add(item); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added %s: %s (%s)\n", item.ID, item.Name, item.Variant)
	return nil
}

func cmdNew(a *app, args []string) error {
	fs := newFlagSet("new")
	qty := fs.Int("qty", 1, "")
	pos, err := parseFlags(fs, args, 4)
	if err != nil {
		return err
	}

	category := model.Category(pos[0])
	if !category.Valid() {
		return usagef("unknown category %q", pos[0])
	}
	price, err := parsePrice(pos[3])
	if err != nil {
		return err
	}

	gen := &ident.RandomSuffix{Now: a.now, Random: rand.Reader}
	id, err := gen.Generate(string(category))
	if err != nil {
		return err
	}

	inv, err := a.inventory()
	if err != nil {
		return err
	}
	item := model.Item{ID: id, Category: category, Name: pos[1], Variant: pos[2], Price: price, Quantity: *qty}
	if err := inv.Add(item); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added %s: %s (%s)\n", item.ID, item.Name, item.Variant)
	return nil
}

func cmdList(a *app, args []string) error {
	fs := newFlagSet("list")
	category := fs.String("category", "", "")
	term := fs.String("q", "", "")
	if _, err := parseFlags(fs, args, 0); err != nil {
		return err
	}

	inv, err := a.inventory()
	if err != nil {
		return err
	}

	var items []model.Item
	switch {
	case *category != "":
		c := model.Category(*category)
		if !c.Valid() {
			return usagef("unknown category %q", *category)
		}
		items = inv.Search(c, *term)
	case *term != "":
		for _, c := range model.Categories {
			items = append(items, inv.Search(c, *term)...)
		}
	default:
		items = inv.All()
	}
	if items == nil {
		items = []model.Item{}
	}
	return a.printJSON(items)
}

func cmdSell(a *app, args []string) error {
	pos, err := parseFlags(newFlagSet("sell"), args, 1)
	if err != nil {
		return err
	}
	inv, err := a.inventory()
	if err != nil {
		return err
	}
	item, err := inv.MarkSold(pos[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s marked as SOLD.\n", item.ID)
	return nil
}

func printSafety(w io.Writer, res model.SafetyResult) {
	fmt.Fprintf(w, "Checking shipping safety for Zip: %s (Temp: %gF)\n", res.Destination, res.Temperature)
	fmt.Fprintf(w, "Status: %s\nMessage: %s\n", res.Classification, res.Reason)
}

func cmdCheck(a *app, args []string) error {
	fs := newFlagSet("check")
	zip := fs.String("zip", "", "")
	if _, err := parseFlags(fs, args, 0); err != nil {
		return err
	}
	if *zip == "" {
		return usagef("-zip is required")
	}

	res, err := shipping.Check(context.Background(), a.weather(a.redis()), *zip)
	if err != nil {
		return err
	}
	printSafety(a.out, res)
	if !res.Allowed() {
		return errDenied
	}
	return nil
}

func cmdShip(a *app, args []string) error {
	fs := newFlagSet("ship")
	zip := fs.String("zip", "", "")
	sub := fs.String("sub", "", "")
	pos, err := parseFlags(fs, args, 1)
	if err != nil {
		return err
	}
	if *zip == "" {
		return usagef("-zip is required")
	}

	inv, err := a.inventory()
	if err != nil {
		return err
	}
	subs, err := a.subscriptions()
	if err != nil {
		return err
	}
	c := &fulfillment.Coordinator{
		Inventory:     inv,
		Subscriptions: subs,
		Weather:       a.weather(a.redis()),
		Events:        a.events(),
		Now:           a.now,
	}

	out, err := c.Ship(context.Background(), fulfillment.Request{ItemID: pos[0], Destination: *zip, SubscriptionID: *sub})
	if errors.Is(err, fulfillment.ErrShipmentDenied) {
		printSafety(a.out, out.Safety)
		return errDenied
	}
	if err != nil {
		return err
	}

	printSafety(a.out, out.Safety)
	fmt.Fprintf(a.out, "%s marked as SOLD.\n", out.Item.ID)
	if out.HoldForPickup {
		fmt.Fprintln(a.out, "Ship with 'Hold for Pickup' at the carrier hub.")
	}
	if out.Subscription != nil {
		fmt.Fprintf(a.out, "%s next ships %s.\n", out.Subscription.ID, out.Subscription.NextShipDate)
	}
	return nil
}

func cmdReinstate(a *app, args []string) error {
	if len(args) < 2 {
		return usagef("item id and reason required")
	}
	inv, err := a.inventory()
	if err != nil {
		return err
	}
	item, err := inv.Reinstate(args[0], strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s is %s again.\n", item.ID, item.Status)
	return nil
}

func cmdFeed(a *app, args []string) error {
	fs := newFlagSet("feed")
	date := fs.String("date", "", "")
	if err := fs.Parse(args); err != nil {
		return usagef("%v", err)
	}
	if fs.NArg() < 2 {
		return usagef("item id and food type required")
	}

	inv, err := a.inventory()
	if err != nil {
		return err
	}
	item, err := inv.AppendFeeding(fs.Arg(0), model.FeedingEntry{
		Date:     *date,
		FoodType: strings.Join(fs.Args()[1:], " "),
	})
	if err != nil {
		return err
	}
	last := item.FeedingLog[len(item.FeedingLog)-1]
	fmt.Fprintf(a.out, "%s fed %s on %s.\n", item.ID, last.FoodType, last.Date)
	return nil
}

func cmdImage(a *app, args []string) error {
	fs := newFlagSet("image")
	publish := fs.Bool("publish", false, "")
	pos, err := parseFlags(fs, args, 2)
	if err != nil {
		return err
	}

	inv, err := a.inventory()
	if err != nil {
		return err
	}
	item, ok := inv.Get(pos[0])
	if !ok {
		return fmt.Errorf("item %s not found", pos[0])
	}

	f, err := os.Open(pos[1])
	if err != nil {
		return err
	}
	defer f.Close()

	asset, local, err := imaging.SaveItemImage(a.cfg.Site.AssetsDir, item.ID, f)
	if err != nil {
		return err
	}
	item.Image = asset
	if err := inv.Update(item.ID, item); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Saved %s as %s.\n", local, asset)

	if *publish {
		if err := storefront.PublishItemImage(context.Background(), a.publisher(), inv, a.layout(), item.ID); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Image uploaded!")
	}
	return nil
}

func cmdSubscribe(a *app, args []string) error {
	pos, err := parseFlags(newFlagSet("subscribe"), args, 3)
	if err != nil {
		return err
	}
	weeks, err := strconv.Atoi(pos[2])
	if err != nil {
		return usagef("invalid frequency %q", pos[2])
	}

	subs, err := a.subscriptions()
	if err != nil {
		return err
	}
	sub, err := subs.Create(pos[0], pos[1], weeks)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Created subscription %s for %s, first ship date %s.\n", sub.ID, sub.Item, sub.NextShipDate)
	return nil
}

func cmdAdvance(a *app, args []string) error {
	pos, err := parseFlags(newFlagSet("advance"), args, 1)
	if err != nil {
		return err
	}
	subs, err := a.subscriptions()
	if err != nil {
		return err
	}
	sub, err := subs.Advance(pos[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s next ships %s.\n", sub.ID, sub.NextShipDate)
	return nil
}

func cmdSubStatus(a *app, args []string) error {
	pos, err := parseFlags(newFlagSet("sub-status"), args, 2)
	if err != nil {
		return err
	}
	subs, err := a.subscriptions()
	if err != nil {
		return err
	}
	sub, err := subs.SetStatus(pos[0], model.SubscriptionStatus(strings.ToUpper(pos[1])))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s is %s.\n", sub.ID, sub.Status)
	return nil
}

func cmdSubs(a *app, args []string) error {
	if _, err := parseFlags(newFlagSet("subs"), args, 0); err != nil {
		return err
	}
	subs, err := a.subscriptions()
	if err != nil {
		return err
	}
	list := subs.List()
	if list == nil {
		list = []model.Subscription{}
	}
	return a.printJSON(list)
}

func cmdDue(a *app, args []string) error {
	fs := newFlagSet("due")
	asOf := fs.String("as-of", "", "")
	if _, err := parseFlags(fs, args, 0); err != nil {
		return err
	}

	when := a.now()
	if *asOf != "" {
		t, err := time.Parse(model.DateLayout, *asOf)
		if err != nil {
			return usagef("-as-of must be YYYY-MM-DD")
		}
		when = t
	}

	subs, err := a.subscriptions()
	if err != nil {
		return err
	}
	due := subs.Due(when)
	if due == nil {
		due = []model.Subscription{}
	}
	return a.printJSON(due)
}

func cmdLead(a *app, args []string) error {
	if len(args) < 3 {
		return usagef("name, email and message required")
	}
	leads, err := a.leads()
	if err != nil {
		return err
	}
	lead, err := leads.Append(args[0], args[1], strings.Join(args[2:], " "))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Lead processed for: %s (%s)\n", lead.Name, lead.Email)
	return nil
}

func cmdLeads(a *app, args []string) error {
	if _, err := parseFlags(newFlagSet("leads"), args, 0); err != nil {
		return err
	}
	leads, err := a.leads()
	if err != nil {
		return err
	}
	list := leads.List()
	if list == nil {
		list = []model.Lead{}
	}
	return a.printJSON(list)
}

func cmdPublish(a *app, args []string) error {
	if _, err := parseFlags(newFlagSet("publish"), args, 0); err != nil {
		return err
	}
	inv, err := a.inventory()
	if err != nil {
		return err
	}
	if err := storefront.PublishCatalog(context.Background(), a.publisher(), inv, a.layout()); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Published successfully!")
	return nil
}
