package allocator

import "github.com/freightpool/absorb/core/model"

// Assignment is one truck's share of an allocation pass.
type Assignment struct {
	Truck      model.Truck
	Deliveries []model.Delivery
	WeightKg   float64
	VolumeL    float64
}

// Packer assigns pending deliveries to available trucks. Implementations must
// never exceed a truck's residual capacity and must assign each delivery to
// at most one truck per pass.
type Packer interface {
	Pack(trucks []model.Truck, pending []model.Delivery) []Assignment
}

// FirstFitPacker fills each truck from the front of the delivery queue and
// stops at the first delivery that would overflow, then moves to the next
// truck. It never skips ahead in the queue, trading packing density for
// predictable, stable behavior.
type FirstFitPacker struct{}

// Pack implements Packer. Deliveries left over when all trucks are exhausted
// stay in the queue for a later pass.
func (FirstFitPacker) Pack(trucks []model.Truck, pending []model.Delivery) []Assignment {
	var out []Assignment
	i := 0
	for _, truck := range trucks {
		if i >= len(pending) {
			break
		}
		asn := Assignment{Truck: truck}
		for i < len(pending) {
			d := pending[i]
			fitsWeight := truck.CurrentWeight+asn.WeightKg+d.WeightKg <= truck.MaxWeightKg
			fitsVolume := truck.CurrentVolume+asn.VolumeL+d.VolumeL <= truck.MaxVolumeL
			if !fitsWeight || !fitsVolume {
				break
			}
			asn.Deliveries = append(asn.Deliveries, d)
			asn.WeightKg += d.WeightKg
			asn.VolumeL += d.VolumeL
			i++
		}
		if len(asn.Deliveries) > 0 {
			out = append(out, asn)
		}
	}
	return out
}
