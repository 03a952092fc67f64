package skills

// Canonical is the seed list of canonical skills.
var Canonical = []string{
	"Computer Science", "First Aid", "Emergency Care", "Logistics", "GIS",
	"Nursing", "Radio Operations", "Chainsaw", "Electrical Work", "Python",
	"Crisis Communications", "Water Purification", "Search and Rescue",
	"Medical Equipment", "Network Administration", "Database Management",
	"Project Management", "Risk Assessment", "Team Leadership", "Public Speaking",
	"Technical Writing", "Quality Assurance", "System Administration", "Cybersecurity",
	"Data Analysis", "Machine Learning", "Web Development", "Mobile Development",
	"Cloud Computing", "DevOps", "Containerization", "API Development",
	"Software Testing", "Translation", "Language Teaching", "Training",
	"Counseling", "Psychology", "Social Work", "Community Outreach",
	"Event Planning", "Volunteer Coordination",
	"Construction", "Carpentry", "Plumbing", "HVAC", "Welding", "Masonry",
	"Roofing", "Heavy Machinery Operation", "Forklift Operation", "Crane Operation",
	"Truck Driving", "Bus Driving", "Pilot License", "Maritime Operations",
	"Supply Chain Management", "Inventory Management", "Warehouse Operations",
	"Fleet Management", "Vehicle Maintenance", "Mechanical Repair", "Electrical Repair",
	"Electronics Repair", "Computer Repair", "Network Troubleshooting", "Security Systems",
	"Fire Safety", "Hazardous Materials", "Environmental Cleanup", "Waste Management",
	"Water Treatment", "Power Generation", "Solar Installation", "Agriculture",
	"Livestock Management", "Irrigation", "Forestry", "Drone Piloting", "3D Printing",
	"Meteorology",
}
