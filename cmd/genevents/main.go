package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"posmirror/internal/event"
	"posmirror/internal/feed"
)

func main() {
	var (
		count     int
		sinkMode  string
		outputDir string
		output    string
		bootstrap string
		topic     string
	)
	flag.IntVar(&count, "count", 100, "number of change events to generate")
	flag.StringVar(&sinkMode, "sink", "file", "event sink: file|kafka|both")
	flag.StringVar(&outputDir, "output-dir", ".", "output directory for file sink")
	flag.StringVar(&output, "output", "pos.change-events.jsonl", "output file for file sink")
	flag.StringVar(&bootstrap, "kafka-bootstrap", "localhost:9092", "kafka bootstrap servers")
	flag.StringVar(&topic, "topic-events", "pos.change-events", "change event topic")
	flag.Parse()

	var sinks []feed.Sink
	if sinkMode == "file" || sinkMode == "both" {
		fs, err := feed.NewFileSink(outputDir, output)
		if err != nil {
			log.Fatalf("init file sink: %v", err)
		}
		sinks = append(sinks, fs)
	}
	if sinkMode == "kafka" || sinkMode == "both" {
		sinks = append(sinks, feed.NewKafkaSink(bootstrap, topic))
	}
	if len(sinks) == 0 {
		log.Fatalf("unknown sink mode: %s", sinkMode)
	}

	if err := generate(count, feed.NewMultiSink(sinks...)); err != nil {
		log.Fatalf("generation failed: %v", err)
	}
}

func generate(count int, sink feed.Sink) error {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	stores := []string{"store-a", "store-b", "store-c"}
	published := 0

	for i := 0; i < count; i++ {
		storeID := stores[rng.Intn(len(stores))]
		orderID := uuid.New().String()
		lineGroupID := uuid.New().String()
		productID := uuid.New().String()

		batch := []event.ChangeEvent{
			{EntityType: event.TypeProduct, Key: productID, Kind: event.KindCreated, AfterImage: makeProduct(rng, storeID)},
			{EntityType: event.TypeOrder, Key: orderID, Kind: event.KindCreated, AfterImage: makeOrder(rng, storeID)},
			{EntityType: event.TypeLineGroup, Key: lineGroupID, Kind: event.KindCreated, AfterImage: makeLineGroup(rng, storeID, orderID, productID)},
			{EntityType: event.TypeSellingTracking, Key: uuid.New().String(), Kind: event.KindCreated, AfterImage: makeTracking(rng, storeID, orderID, lineGroupID, productID)},
		}

		// Exercise redelivery, overwrite and tombstone paths.
		if i%3 == 0 {
			batch = append(batch, batch[1]) // duplicate create
		}
		if i%4 == 0 {
			after := makeOrder(rng, storeID)
			after["status"] = "paid"
			after["message"] = "thanks"
			batch = append(batch, event.ChangeEvent{EntityType: event.TypeOrder, Key: orderID, Kind: event.KindUpdated, AfterImage: after})
		}
		if i%10 == 0 {
			batch = append(batch, event.ChangeEvent{EntityType: event.TypeProduct, Key: productID, Kind: event.KindDeleted})
		}

		for _, ev := range batch {
			if err := sink.Publish(ctx, ev); err != nil {
				return fmt.Errorf("publish %s/%s: %w", ev.EntityType, ev.Key, err)
			}
			published++
		}
	}

	log.Printf("published %d change events", published)
	return nil
}

func money(rng *rand.Rand) string {
	return fmt.Sprintf("%d.%02d", 1+rng.Intn(9999), rng.Intn(100))
}

func nowShape(rng *rand.Rand) any {
	// Rotate through the timestamp shapes the source is known to deliver.
	now := time.Now().UTC()
	switch rng.Intn(4) {
	case 0:
		return now.Unix()
	case 1:
		return now.UnixMilli()
	case 2:
		return map[string]any{"seconds": now.Unix(), "nanoseconds": int64(now.Nanosecond())}
	default:
		return now.Format(time.RFC3339Nano)
	}
}

func makeOrder(rng *rand.Rand, storeID string) map[string]any {
	total := money(rng)
	return map[string]any{
		"assignedCashierId":   uuid.New().String(),
		"assignedCashierName": "Cashier " + fmt.Sprint(1+rng.Intn(9)),
		"cashSale":            rng.Intn(2) == 0,
		"companyId":           "company-1",
		"createdAt":           nowShape(rng),
		"customerInfo": map[string]any{
			"fullName": "Walk-in Customer",
		},
		"date":           nowShape(rng),
		"grossAmount":    total,
		"netAmount":      total,
		"invoiceNumber":  fmt.Sprintf("INV-%06d", rng.Intn(1000000)),
		"payments": map[string]any{
			"amountTendered":     total,
			"paymentDescription": "cash",
		},
		"status":      "active",
		"storeId":     storeID,
		"totalAmount": total,
		"vatAmount":   money(rng),
	}
}

func makeLineGroup(rng *rand.Rand, storeID string, orderID string, productID string) map[string]any {
	n := 1 + rng.Intn(3)
	items := make([]any, 0, n)
	for j := 0; j < n; j++ {
		items = append(items, map[string]any{
			"productId":   productID,
			"productName": "Item " + fmt.Sprint(j+1),
			"quantity":    1 + rng.Intn(5),
			"price":       money(rng),
			"discount":    "0",
			"vat":         money(rng),
			"isVatExempt": false,
			"total":       money(rng),
		})
	}
	return map[string]any{
		"batchNumber": 1 + rng.Intn(100),
		"companyId":   "company-1",
		"createdAt":   nowShape(rng),
		"orderId":     orderID,
		"storeId":     storeID,
		"items":       items,
	}
}

func makeProduct(rng *rand.Rand, storeID string) map[string]any {
	return map[string]any{
		"barcodeId":       fmt.Sprintf("%012d", rng.Int63n(1e12)),
		"category":        "grocery",
		"companyId":       "company-1",
		"createdAt":       nowShape(rng),
		"hasDiscount":     false,
		"isVatApplicable": true,
		"productName":     "Product " + fmt.Sprint(1+rng.Intn(999)),
		"sellingPrice":    money(rng),
		"status":          "active",
		"storeId":         storeID,
		"totalStock":      rng.Intn(500),
	}
}

func makeTracking(rng *rand.Rand, storeID string, orderID string, lineGroupID string, productID string) map[string]any {
	return map[string]any{
		"batchNumber": 1 + rng.Intn(100),
		"companyId":   "company-1",
		"createdAt":   nowShape(rng),
		"itemIndex":   rng.Intn(5),
		"lineGroupId": lineGroupID,
		"orderId":     orderID,
		"price":       money(rng),
		"productId":   productID,
		"quantity":    fmt.Sprint(1 + rng.Intn(5)),
		"status":      "active",
		"storeId":     storeID,
		"total":       money(rng),
		"vat":         money(rng),
	}
}
